// Package pattern compiles and executes byte signatures.
//
// A signature is a small pattern language for locating code or data inside
// raw memory images that differ slightly between builds. Compiled signatures
// are immutable and safe for concurrent use; all per-scan progress lives in a
// caller-owned State.
//
// # Signature Syntax
//
//	48 8B 05          hex pairs; adjacent pairs fold into one literal
//	.{4}              wildcard byte with a repetition range
//	[00-0F|20]        byte set: '-' range, '|' union, '&' don't-care mask
//	^90  [^00|FF]     negated byte set
//	B8&BF             any byte agreeing with B8 and BF on the bits they share
//	'text' L'wide'    literal bytes (C escapes, \xHH with width from digit count)
//	"text"            pointer at this position must point at these bytes
//	<D name>          capture a value; flags A F Q D W B, '^' for region-relative
//	40-4F@L  $1L      nibble back-references (L = high nibble, R = low nibble)
//	# comment         to end of line
//
// Quantifiers follow an element directly: * + ? {n} {n,} {,m} {n,m}. Counts
// are hex digit runs and the separator may be any of , - ~ : |.
//
// # Basic Usage
//
//	p, err := pattern.Compile("E8 <F target> .{4} 48 85 C0")
//	if err != nil {
//	    return err
//	}
//
//	res := p.Scan(mem, regions)
//	if res.Report.Empty() {
//	    return nil // no match
//	}
//	target, _ := res.Report.Get("target")
package pattern
