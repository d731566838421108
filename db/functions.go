package db

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/nickyhof/EmbedDB/core"
)

// builtin is a scalar function known to the binder by name.
type builtin struct {
	name    string
	minArgs int
	maxArgs int // -1 for any number
	// strict functions return NULL without being called when an argument
	// is NULL
	strict bool
	// niladic functions may be written without parentheses
	niladic bool
	returns func(args []core.ColumnType) core.ColumnType
	call    func(ctx *evalContext, args []core.Value) (core.Value, error)
}

var builtins = map[string]*builtin{}

func registerBuiltins(fns ...*builtin) {
	for _, fn := range fns {
		builtins[fn.name] = fn
	}
}

func returnsType(t core.ColumnType) func([]core.ColumnType) core.ColumnType {
	return func([]core.ColumnType) core.ColumnType { return t }
}

// numericResult keeps a numeric argument's type and maps anything else to
// DECIMAL.
func numericResult(args []core.ColumnType) core.ColumnType {
	if len(args) > 0 && args[0].IsNumeric() {
		return args[0]
	}
	return core.DecimalType
}

func stringResult(args []core.ColumnType) core.ColumnType {
	if len(args) > 0 && args[0].IsString() {
		return args[0]
	}
	return core.VarCharType
}

func commonResult(args []core.ColumnType) core.ColumnType {
	t := core.NullType
	for _, arg := range args {
		t = core.Promote(t, arg)
	}
	return t
}

func toNumeric(v core.Value) (core.Value, error) {
	if v.Type().IsNumeric() {
		return v, nil
	}
	return core.Convert(v, core.DecimalType)
}

func renamed(name string, fn *builtin) *builtin {
	clone := *fn
	clone.name = name
	return &clone
}

func invalidArgument(format string, args ...any) error {
	return core.NewConstraintError(core.CodeInvalidArgument, format, args...)
}

func init() {
	abs := &builtin{name: "ABS", minArgs: 1, maxArgs: 1, strict: true, returns: numericResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			v, err := toNumeric(args[0])
			if err != nil {
				return core.Value{}, err
			}
			if v.Type() == core.DecimalType {
				return core.NewDecimal(v.Decimal().Abs()), nil
			}
			if v.Float64() < 0 {
				return core.Negate(v)
			}
			return v, nil
		}}

	sqrt := &builtin{name: "SQRT", minArgs: 1, maxArgs: 1, strict: true, returns: returnsType(core.DoubleType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			v, err := toNumeric(args[0])
			if err != nil {
				return core.Value{}, err
			}
			f := v.Float64()
			if f < 0 {
				return core.Value{}, invalidArgument("SQRT of negative number %s", v)
			}
			return core.NewDouble(math.Sqrt(f)), nil
		}}

	substring := &builtin{name: "SUBSTRING", minArgs: 2, maxArgs: 3, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			runes := []rune(args[0].Str())
			start, err := intArg(args[1])
			if err != nil {
				return core.Value{}, err
			}
			begin := start - 1
			end := len(runes)
			if len(args) == 3 {
				length, err := intArg(args[2])
				if err != nil {
					return core.Value{}, err
				}
				if length < 0 {
					return core.Value{}, invalidArgument("negative SUBSTRING length %d", length)
				}
				end = begin + length
			}
			begin = max(begin, 0)
			end = min(end, len(runes))
			if end <= begin {
				return core.NewString(stringType(args[0]), ""), nil
			}
			return core.NewString(stringType(args[0]), string(runes[begin:end])), nil
		}}

	ascii := &builtin{name: "ASCII", minArgs: 1, maxArgs: 1, strict: true, returns: returnsType(core.IntegerType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			s := args[0].Str()
			if s == "" {
				return core.Null(core.IntegerType), nil
			}
			r, _ := utf8.DecodeRuneInString(s)
			return core.NewInteger(int32(r)), nil
		}}

	char := &builtin{name: "CHAR", minArgs: 1, maxArgs: 1, strict: true, returns: returnsType(core.VarCharType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			code, err := intArg(args[0])
			if err != nil {
				return core.Value{}, err
			}
			if code < 0 || code > utf8.MaxRune {
				return core.Value{}, invalidArgument("invalid character code %d", code)
			}
			return core.NewVarChar(string(rune(code))), nil
		}}

	user := &builtin{name: "USER", niladic: true, returns: returnsType(core.VarCharType),
		call: func(ctx *evalContext, _ []core.Value) (core.Value, error) {
			return core.NewVarChar(ctx.ch.user), nil
		}}

	identity := &builtin{name: "IDENTITY", returns: returnsType(core.BigIntType),
		call: func(ctx *evalContext, _ []core.Value) (core.Value, error) {
			return core.Convert(ctx.ch.lastIdentity, core.BigIntType)
		}}

	now := &builtin{name: "NOW", returns: returnsType(core.TimestampType),
		call: func(ctx *evalContext, _ []core.Value) (core.Value, error) {
			return core.NewTimestamp(ctx.now), nil
		}}

	currentDate := &builtin{name: "CURRENT_DATE", niladic: true, returns: returnsType(core.DateType),
		call: func(ctx *evalContext, _ []core.Value) (core.Value, error) {
			return core.NewDate(ctx.now), nil
		}}

	currentTime := &builtin{name: "CURRENT_TIME", niladic: true, returns: returnsType(core.TimeType),
		call: func(ctx *evalContext, _ []core.Value) (core.Value, error) {
			return core.NewTime(ctx.now), nil
		}}

	database := &builtin{name: "DATABASE", returns: returnsType(core.VarCharType),
		call: func(ctx *evalContext, _ []core.Value) (core.Value, error) {
			return core.NewVarChar(ctx.ch.db.name), nil
		}}

	upper := &builtin{name: "UPPER", minArgs: 1, maxArgs: 1, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			return core.NewString(stringType(args[0]), strings.ToUpper(args[0].Str())), nil
		}}

	lower := &builtin{name: "LOWER", minArgs: 1, maxArgs: 1, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			return core.NewString(stringType(args[0]), strings.ToLower(args[0].Str())), nil
		}}

	length := &builtin{name: "LENGTH", minArgs: 1, maxArgs: 1, strict: true, returns: returnsType(core.IntegerType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			if args[0].Type().IsBinary() {
				return core.NewInteger(int32(len(args[0].Bytes()))), nil
			}
			return core.NewInteger(int32(utf8.RuneCountInString(args[0].Str()))), nil
		}}

	// NULL arguments are skipped rather than nulling the whole result
	concat := &builtin{name: "CONCAT", minArgs: 1, maxArgs: -1, returns: returnsType(core.VarCharType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			var b strings.Builder
			for _, arg := range args {
				if !arg.IsNull() {
					b.WriteString(arg.Str())
				}
			}
			return core.NewVarChar(b.String()), nil
		}}

	trim := &builtin{name: "TRIM", minArgs: 1, maxArgs: 1, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			return core.NewString(stringType(args[0]), strings.Trim(args[0].Str(), " ")), nil
		}}

	ltrim := &builtin{name: "LTRIM", minArgs: 1, maxArgs: 1, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			return core.NewString(stringType(args[0]), strings.TrimLeft(args[0].Str(), " ")), nil
		}}

	rtrim := &builtin{name: "RTRIM", minArgs: 1, maxArgs: 1, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			return core.NewString(stringType(args[0]), strings.TrimRight(args[0].Str(), " ")), nil
		}}

	replace := &builtin{name: "REPLACE", minArgs: 3, maxArgs: 3, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			return core.NewString(stringType(args[0]), strings.ReplaceAll(args[0].Str(), args[1].Str(), args[2].Str())), nil
		}}

	left := &builtin{name: "LEFT", minArgs: 2, maxArgs: 2, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			runes := []rune(args[0].Str())
			n, err := intArg(args[1])
			if err != nil {
				return core.Value{}, err
			}
			if n < 0 {
				return core.Value{}, invalidArgument("negative LEFT length %d", n)
			}
			return core.NewString(stringType(args[0]), string(runes[:min(n, len(runes))])), nil
		}}

	right := &builtin{name: "RIGHT", minArgs: 2, maxArgs: 2, strict: true, returns: stringResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			runes := []rune(args[0].Str())
			n, err := intArg(args[1])
			if err != nil {
				return core.Value{}, err
			}
			if n < 0 {
				return core.Value{}, invalidArgument("negative RIGHT length %d", n)
			}
			return core.NewString(stringType(args[0]), string(runes[len(runes)-min(n, len(runes)):])), nil
		}}

	locate := &builtin{name: "LOCATE", minArgs: 2, maxArgs: 3, strict: true, returns: returnsType(core.IntegerType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			search := []rune(args[0].Str())
			runes := []rune(args[1].Str())
			start := 1
			if len(args) == 3 {
				n, err := intArg(args[2])
				if err != nil {
					return core.Value{}, err
				}
				start = max(n, 1)
			}
			for i := start - 1; i+len(search) <= len(runes); i++ {
				if string(runes[i:i+len(search)]) == string(search) {
					return core.NewInteger(int32(i + 1)), nil
				}
			}
			return core.NewInteger(0), nil
		}}

	mod := &builtin{name: "MOD", minArgs: 2, maxArgs: 2, strict: true, returns: commonResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			return core.Arithmetic(core.OpModulo, args[0], args[1])
		}}

	round := &builtin{name: "ROUND", minArgs: 1, maxArgs: 2, strict: true, returns: numericResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			v, err := toNumeric(args[0])
			if err != nil {
				return core.Value{}, err
			}
			places := 0
			if len(args) == 2 {
				if places, err = intArg(args[1]); err != nil {
					return core.Value{}, err
				}
			}
			switch v.Type() {
			case core.DecimalType:
				return core.NewDecimal(v.Decimal().Round(int32(places))), nil
			case core.DoubleType:
				scale := math.Pow(10, float64(places))
				return core.NewDouble(math.Round(v.Float64()*scale) / scale), nil
			}
			if places >= 0 {
				return v, nil
			}
			rounded := v.Decimal().Round(int32(places))
			return core.Convert(core.NewDecimal(rounded), v.Type())
		}}

	floor := &builtin{name: "FLOOR", minArgs: 1, maxArgs: 1, strict: true, returns: numericResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			v, err := toNumeric(args[0])
			if err != nil {
				return core.Value{}, err
			}
			switch v.Type() {
			case core.DecimalType:
				return core.NewDecimal(v.Decimal().Floor()), nil
			case core.DoubleType:
				return core.NewDouble(math.Floor(v.Float64())), nil
			}
			return v, nil
		}}

	ceiling := &builtin{name: "CEILING", minArgs: 1, maxArgs: 1, strict: true, returns: numericResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			v, err := toNumeric(args[0])
			if err != nil {
				return core.Value{}, err
			}
			switch v.Type() {
			case core.DecimalType:
				return core.NewDecimal(v.Decimal().Ceil()), nil
			case core.DoubleType:
				return core.NewDouble(math.Ceil(v.Float64())), nil
			}
			return v, nil
		}}

	power := &builtin{name: "POWER", minArgs: 2, maxArgs: 2, strict: true, returns: returnsType(core.DoubleType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			x, err := toNumeric(args[0])
			if err != nil {
				return core.Value{}, err
			}
			y, err := toNumeric(args[1])
			if err != nil {
				return core.Value{}, err
			}
			return core.NewDouble(math.Pow(x.Float64(), y.Float64())), nil
		}}

	sign := &builtin{name: "SIGN", minArgs: 1, maxArgs: 1, strict: true, returns: returnsType(core.IntegerType),
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			v, err := toNumeric(args[0])
			if err != nil {
				return core.Value{}, err
			}
			return core.NewInteger(int32(v.Decimal().Sign())), nil
		}}

	pi := &builtin{name: "PI", returns: returnsType(core.DoubleType),
		call: func(_ *evalContext, _ []core.Value) (core.Value, error) {
			return core.NewDouble(math.Pi), nil
		}}

	coalesce := &builtin{name: "COALESCE", minArgs: 1, maxArgs: -1, returns: commonResult,
		call: func(_ *evalContext, args []core.Value) (core.Value, error) {
			types := make([]core.ColumnType, len(args))
			for i, arg := range args {
				types[i] = arg.Type()
			}
			for _, arg := range args {
				if !arg.IsNull() {
					return core.Convert(arg, commonResult(types))
				}
			}
			return core.Null(commonResult(types)), nil
		}}

	registerBuiltins(
		abs, sqrt, substring, renamed("SUBSTR", substring), ascii, char,
		user, renamed("CURRENT_USER", user), identity,
		now, &builtin{name: "CURRENT_TIMESTAMP", niladic: true, returns: now.returns, call: now.call},
		currentDate, renamed("CURDATE", currentDate), currentTime, renamed("CURTIME", currentTime), database,
		upper, renamed("UCASE", upper), lower, renamed("LCASE", lower),
		length, renamed("CHAR_LENGTH", length), renamed("CHARACTER_LENGTH", length),
		concat, trim, ltrim, rtrim, replace, left, right, locate,
		mod, round, floor, ceiling, renamed("CEIL", ceiling), power, sign, pi,
		coalesce, &builtin{name: "IFNULL", minArgs: 2, maxArgs: 2, returns: commonResult, call: coalesce.call},
		&builtin{name: "NVL", minArgs: 2, maxArgs: 2, returns: commonResult, call: coalesce.call},
	)
}

func intArg(v core.Value) (int, error) {
	i, err := core.Convert(v, core.IntegerType)
	if err != nil {
		return 0, err
	}
	return int(i.Int64()), nil
}

func stringType(v core.Value) core.ColumnType {
	if v.Type().IsString() {
		return v.Type()
	}
	return core.VarCharType
}
