package model

import "errors"

// Error kinds. Every error returned by the compiler wraps exactly one of these.
var (
	ErrInvalidJSON               = errors.New("invalid JSON")
	ErrMultipleCustomElements    = errors.New("multiple custom elements")
	ErrInvalidCustomElementChild = errors.New("invalid custom element child")
	ErrUnknownLayout             = errors.New("unknown layout")
	ErrCyclicLayoutChain         = errors.New("cyclic layout chain")
	ErrFileSystem                = errors.New("file system error")
	ErrHelperLoad                = errors.New("helper load error")
	ErrTemplate                  = errors.New("template error")
	ErrPageCollision             = errors.New("page collision")
	ErrPageNotFound              = errors.New("page not found")
)

// Error attaches a kind and the offending path to an underlying cause.
type Error struct {
	Kind error
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap returns err tagged with kind and path. A nil err stays nil, and an
// err that already carries kind only gets the path filled in when missing.
func Wrap(kind error, path string, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) && errors.Is(me.Kind, kind) {
		if me.Path == "" {
			me.Path = path
		}
		return err
	}
	return &Error{Kind: kind, Path: path, Err: err}
}
