// Package stream defines the declaration stream produced by a C front end and
// the codecs that read it.
package stream

// Entry is one top-level declaration of the stream.
type Entry struct {
	Kind     string `json:"kind"`
	Name     string `json:"name,omitempty"`
	ID       string `json:"id,omitempty"`
	Location string `json:"location,omitempty"`
	Doc      string `json:"doc,omitempty"`

	// typedef target and variable type
	Type *Type `json:"type,omitempty"`

	// struct, union and enum
	Size   *int        `json:"size,omitempty"`
	Align  *int        `json:"align,omitempty"`
	Packed bool        `json:"packed,omitempty"`
	Opaque bool        `json:"opaque,omitempty"`
	Fields []Field     `json:"fields,omitempty"`
	Values []EnumValue `json:"values,omitempty"`
	Signed *bool       `json:"signed,omitempty"`

	// function
	Result   *Type   `json:"result,omitempty"`
	Params   []Param `json:"params,omitempty"`
	Variadic bool    `json:"variadic,omitempty"`
	CallConv string  `json:"callconv,omitempty"`

	// variable
	Init string `json:"init,omitempty"`

	// macro
	MacroParams  []string `json:"macro_params,omitempty"`
	FunctionLike bool     `json:"function_like,omitempty"`
	Body         string   `json:"body,omitempty"`

	// Malformed carries the decode error of an entry the codec could not
	// read. Such entries keep their position in the stream.
	Malformed string `json:"-" msgpack:"-"`
}

// Type is a nested type descriptor. Struct, union and enum descriptors that
// are Defined (or carry a non-nil Fields/Values slice) define the type
// inline; without a body they reference a tag by name.
type Type struct {
	Kind    string `json:"kind"`
	Defined bool   `json:"defined,omitempty"`

	Name  string `json:"name,omitempty"`
	Size  *int   `json:"size,omitempty"`
	Align *int   `json:"align,omitempty"`
	Const bool   `json:"const,omitempty"`

	// pointer and array
	Elem  *Type `json:"elem,omitempty"`
	Count *int  `json:"count,omitempty"`

	// function_pointer
	Result   *Type   `json:"result,omitempty"`
	Params   []Param `json:"params,omitempty"`
	Variadic bool    `json:"variadic,omitempty"`
	CallConv string  `json:"callconv,omitempty"`

	// inline struct, union or enum body
	Fields []Field     `json:"fields,omitempty"`
	Values []EnumValue `json:"values,omitempty"`
	Packed bool        `json:"packed,omitempty"`
	Signed *bool       `json:"signed,omitempty"`
}

// HasBody reports inline struct/union/enum definitions.
func (t *Type) HasBody() bool {
	return t != nil && (t.Defined || t.Fields != nil || t.Values != nil)
}

type Field struct {
	Name      string `json:"name,omitempty"`
	Type      *Type  `json:"type"`
	BitOffset *int   `json:"bit_offset,omitempty"`
	BitWidth  *int   `json:"bit_width,omitempty"`
}

type Param struct {
	Name string `json:"name,omitempty"`
	Type *Type  `json:"type"`
}

type EnumValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Int returns a pointer to v, for building descriptors in code.
func Int(v int) *int { return &v }
