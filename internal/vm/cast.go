package vm

import (
	"strconv"

	"github.com/dust-lang/dust/internal/bytecode"
)

// castValue implements the `as` operator's runtime half.
// internal/compiler/expressions.go castExpr does not check the source
// type, so a source/target pair not handled below returns src
// unchanged. Conversions that could fail (Str ->
// numeric with unparseable text) fall back to the type's zero value
// rather than trapping — CAST has no trap channel, and there is no
// user-level exception mechanism to report a parse failure through.
func castValue(pool *ObjectPool, src Value, target bytecode.TypeCode) Value {
	switch target {
	case bytecode.TInt:
		switch src.Kind {
		case KInt:
			return src
		case KFloat:
			return IntValue(int64(src.F))
		case KByte, KChar, KBool:
			return IntValue(src.I)
		case KStr:
			s, _ := pool.Str(src.H)
			n, _ := strconv.ParseInt(s, 10, 64)
			return IntValue(n)
		}
	case bytecode.TFloat:
		switch src.Kind {
		case KFloat:
			return src
		case KInt, KByte, KChar, KBool:
			return FloatValue(float64(src.I))
		case KStr:
			s, _ := pool.Str(src.H)
			f, _ := strconv.ParseFloat(s, 64)
			return FloatValue(f)
		}
	case bytecode.TByte:
		switch src.Kind {
		case KByte:
			return src
		case KInt, KChar, KBool:
			return ByteValue(byte(src.I))
		case KFloat:
			return ByteValue(byte(int64(src.F)))
		}
	case bytecode.TChar:
		switch src.Kind {
		case KChar:
			return src
		case KInt, KByte, KBool:
			return CharValue(rune(src.I))
		}
	case bytecode.TBool:
		switch src.Kind {
		case KBool:
			return src
		case KInt, KByte, KChar:
			return BoolValue(src.I != 0)
		}
	case bytecode.TStr:
		if src.Kind == KStr {
			return src
		}
		h := pool.AllocStr(Display(pool, src))
		return StrValue(h)
	}
	return src
}
