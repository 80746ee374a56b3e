package xmlrpc

import (
	"fmt"
)

// Request is an XML-RPC method call, as carried by a methodCall
// document.
type Request struct {
	Method string
	Params []Value
}

// NewRequest returns a call of method, with each of args marshaled
// into one positional parameter.
func NewRequest(method string, args ...any) (*Request, error) {
	params, err := marshalParams(args)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method: method,
		Params: params,
	}, nil
}

// Unmarshal decodes the request's parameters into outs, which must be
// non-nil pointers. The number of parameters must equal the number
// of outs.
func (r *Request) Unmarshal(outs ...any) error {
	var d Decoder
	return d.UnmarshalParams(r.Params, outs...)
}

// Response is the result of an XML-RPC method call, as carried by a
// methodResponse document. A response either carries parameters, or
// a Fault.
type Response struct {
	Params []Value
	// Fault, if non-nil, is the failure that the call resulted
	// in. Params is empty in that case.
	Fault *Fault
}

// NewResponse returns a successful response, with each of results
// marshaled into one positional parameter.
func NewResponse(results ...any) (*Response, error) {
	params, err := marshalParams(results)
	if err != nil {
		return nil, err
	}
	return &Response{Params: params}, nil
}

// NewFaultResponse returns a failed response.
func NewFaultResponse(code int32, msg string) *Response {
	return &Response{
		Fault: &Fault{
			Code:    code,
			Message: msg,
		},
	}
}

// IsFault reports whether the response is a failure.
func (r *Response) IsFault() bool {
	return r.Fault != nil
}

// Unmarshal decodes the response's parameters into outs, which must
// be non-nil pointers. If the response is a fault, Unmarshal returns
// the fault as its error and leaves outs untouched.
func (r *Response) Unmarshal(outs ...any) error {
	if r.Fault != nil {
		return r.Fault
	}
	var d Decoder
	return d.UnmarshalParams(r.Params, outs...)
}

// Fault is the failure of an XML-RPC method call.
type Fault struct {
	Code    int32  `xmlrpc:"faultCode"`
	Message string `xmlrpc:"faultString"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.Message)
}

// Value returns the encoding of f, as carried inside a fault element.
func (f *Fault) Value() Value {
	return Struct{
		{"faultCode", Int(f.Code)},
		{"faultString", Str(f.Message)},
	}
}

// ParseFault decodes the contents of a fault element. Members other
// than faultCode and faultString are ignored.
func ParseFault(v Value) (*Fault, error) {
	var ret Fault
	if err := Unmarshal(v, &ret); err != nil {
		return nil, fmt.Errorf("invalid fault: %w", err)
	}
	return &ret, nil
}

func marshalParams(args []any) ([]Value, error) {
	ret := make([]Value, 0, len(args))
	for i, arg := range args {
		v, err := Marshal(arg)
		if err != nil {
			return nil, atPath(err, fmt.Sprintf("params[%d]", i))
		}
		ret = append(ret, v)
	}
	return ret, nil
}
