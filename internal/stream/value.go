package stream

import (
	"fmt"

	"github.com/leapstack-labs/sysmlsql/pkg/core"
	"github.com/valyala/fastjson"
)

// ParseElement parses one JSON object into an element.
func ParseElement(p *fastjson.Parser, data []byte) (core.Element, error) {
	v, err := p.ParseBytes(data)
	if err != nil {
		return core.Element{}, err
	}
	return toElement(v)
}

func toElement(v *fastjson.Value) (core.Element, error) {
	if v.Type() != fastjson.TypeObject {
		return core.Element{}, fmt.Errorf("element must be an object, got %s", v.Type())
	}
	val, err := toValue(v)
	if err != nil {
		return core.Element{}, err
	}
	return core.NewElement(val.(core.Object).Attributes)
}

func toValue(v *fastjson.Value) (core.Value, error) {
	switch v.Type() {
	case fastjson.TypeNull:
		return core.Null{}, nil
	case fastjson.TypeTrue:
		return core.Bool(true), nil
	case fastjson.TypeFalse:
		return core.Bool(false), nil
	case fastjson.TypeNumber:
		// numbers are kept verbatim, MarshalTo emits the source text
		return core.Number(v.MarshalTo(nil)), nil
	case fastjson.TypeString:
		return core.String(v.GetStringBytes()), nil
	case fastjson.TypeArray:
		items := v.GetArray()
		arr := make(core.Array, len(items))
		for i, item := range items {
			iv, err := toValue(item)
			if err != nil {
				return nil, err
			}
			arr[i] = iv
		}
		return arr, nil
	case fastjson.TypeObject:
		obj := v.GetObject()
		attrs := make([]core.Attribute, 0, obj.Len())
		var visitErr error
		obj.Visit(func(key []byte, member *fastjson.Value) {
			if visitErr != nil {
				return
			}
			mv, err := toValue(member)
			if err != nil {
				visitErr = err
				return
			}
			attrs = append(attrs, core.Attribute{Name: string(key), Value: mv})
		})
		if visitErr != nil {
			return nil, visitErr
		}
		a, err := core.NewAttributes(attrs...)
		if err != nil {
			return nil, err
		}
		return core.Object{Attributes: a}, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value of type %s", v.Type())
	}
}

// AppendElement appends the compact JSON encoding of e to dst, keeping the
// attribute order.
func AppendElement(dst []byte, a *fastjson.Arena, e core.Element) []byte {
	defer a.Reset()
	return fromAttributes(a, e.Attributes).MarshalTo(dst)
}

func fromAttributes(a *fastjson.Arena, attrs core.Attributes) *fastjson.Value {
	obj := a.NewObject()
	for name, v := range attrs.All() {
		obj.Set(name, fromValue(a, v))
	}
	return obj
}

func fromValue(a *fastjson.Arena, v core.Value) *fastjson.Value {
	switch x := v.(type) {
	case core.Bool:
		if x {
			return a.NewTrue()
		}
		return a.NewFalse()
	case core.Number:
		return a.NewNumberString(string(x))
	case core.String:
		return a.NewString(string(x))
	case core.Array:
		arr := a.NewArray()
		for i, item := range x {
			arr.SetArrayItem(i, fromValue(a, item))
		}
		return arr
	case core.Object:
		return fromAttributes(a, x.Attributes)
	default:
		return a.NewNull()
	}
}
