package nibblevm

// Standard tables, spec "nibble stack machine" component: blocks of nibbles
// pushed once that supply get_value_from_table(table, offset) -- pop an
// index, push table[index]. Kept as plain Go slices/arrays here since this
// simulator is purely combinational (see Machine doc comment) rather than a
// byte-code compiler targeting an external scripting VM.

// Modulo16 maps i -> i%16 for i in [0,31] (used to fold a carry-extended sum
// or product partial back into a single nibble).
var Modulo16 [32]uint8

// Quotient16 maps i -> i/16 for i in [0,31] (the companion carry-out table).
var Quotient16 [32]uint8

// ShiftLeft[k] and ShiftRight[k] are nibble lookup tables for a sub-nibble
// shift by k bits, k in {1,2,3}. ShiftLeft[k][n] = (n<<k) & 0xF;
// ShiftRight[k][n] = n>>k.
var ShiftLeft [4][16]uint8
var ShiftRight [4][16]uint8

// AndTable, OrTable, XorTable are indexed at x*16+y and return x OP y for
// nibbles x,y.
var AndTable [256]uint8
var OrTable [256]uint8
var XorTable [256]uint8

// MulModTable and MulQuotTable give the low nibble and carry nibble of a
// single-nibble product: MulModTable[x*16+y] = (x*y)%16,
// MulQuotTable[x*16+y] = (x*y)/16.
var MulModTable [256]uint8
var MulQuotTable [256]uint8

// HalfLookup is the sorted-pair lookup of size 136 = C(16,2)+16: index i
// holds the pair (x,y) with x<=y enumerated in lexicographic order. No table
// lookup in this module goes through it: LogicWithBitExtension indexes the
// AND/OR/XOR tables at x*16+y directly.
var HalfLookup [136][2]uint8

// HalfLookupIndex maps a sorted pair (x,y), x<=y, back to its offset in
// HalfLookup -- the inverse direction used when emitting a lookup.
var HalfLookupIndex [16][16]int

func init() {
	for i := 0; i < 32; i++ {
		Modulo16[i] = uint8(i % 16)
		Quotient16[i] = uint8(i / 16)
	}
	for k := 1; k <= 3; k++ {
		for n := 0; n < 16; n++ {
			ShiftLeft[k][n] = uint8((n << uint(k)) & 0xF)
			ShiftRight[k][n] = uint8(n >> uint(k))
		}
	}
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			idx := x*16 + y
			AndTable[idx] = uint8(x & y)
			OrTable[idx] = uint8(x | y)
			XorTable[idx] = uint8(x ^ y)
			MulModTable[idx] = uint8((x * y) % 16)
			MulQuotTable[idx] = uint8((x * y) / 16)
		}
	}
	offset := 0
	for x := 0; x < 16; x++ {
		for y := x; y < 16; y++ {
			HalfLookup[offset] = [2]uint8{uint8(x), uint8(y)}
			HalfLookupIndex[x][y] = offset
			HalfLookupIndex[y][x] = offset
			offset++
		}
	}
}

// sortedOffset returns the HalfLookup offset for the unordered pair (x, y).
func sortedOffset(x, y uint8) int {
	return HalfLookupIndex[x&0xF][y&0xF]
}
