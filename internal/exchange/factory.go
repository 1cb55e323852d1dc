package exchange

import "fmt"

// NewExchange создаёт клиент биржи по имени
//
// Сейчас поддерживается только Gate.io; сигнатура оставлена общей
// чтобы добавление новой биржи не трогало вызывающий код.
func NewExchange(name string) (Exchange, error) {
	switch name {
	case "gate", "gateio", "gate.io":
		return NewGate(), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}
