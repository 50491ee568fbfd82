package taxlots

import (
	"strings"
)

// Method selects which acquisition lot a disposal draws from.
type Method string

const (
	// FIFO consumes the oldest acquisition first.
	FIFO Method = "fifo"
	// LIFO consumes the newest acquisition first.
	LIFO Method = "lifo"
	// HIFO consumes the acquisition with the highest unit cost first.
	HIFO Method = "hifo"
)

// Methods returns every supported accounting method.
func Methods() []Method {
	return []Method{FIFO, LIFO, HIFO}
}

// ParseMethod accepts a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if _, err := m.lotOrder(); err != nil {
		return "", err
	}
	return m, nil
}

func (m Method) String() string {
	return string(m)
}

// Valid reports whether m is one of Methods().
func (m Method) Valid() bool {
	_, err := m.lotOrder()
	return err == nil
}

// lotOrder returns the primary ordering between two candidate lots for m.
// It reports 0 on a tie; callers break ties on source id and input position.
func (m Method) lotOrder() (func(a, b *lot) int, error) {
	switch m {
	case FIFO:
		return func(a, b *lot) int {
			return a.event.Timestamp.Compare(b.event.Timestamp)
		}, nil
	case LIFO:
		return func(a, b *lot) int {
			return b.event.Timestamp.Compare(a.event.Timestamp)
		}, nil
	case HIFO:
		return func(a, b *lot) int {
			if c := b.unitCost.Cmp(a.unitCost); c != 0 {
				return c
			}
			return a.event.Timestamp.Compare(b.event.Timestamp)
		}, nil
	default:
		return nil, invalid("method", "", "unsupported accounting method "+strings.TrimSpace(string(m)))
	}
}
