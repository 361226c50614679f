package protocol

import "fmt"

// State: состояние протокола соединения.
type State uint8

const (
	Handshake State = iota
	Status
	Login
	Configuration
	Play
)

var stateNames = [...]string{"handshake", "status", "login", "configuration", "play"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ParseState возвращает состояние по имени из таблицы идентификаторов.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// Direction: направление пакета относительно сервера.
type Direction uint8

const (
	Serverbound Direction = iota
	Clientbound
)

func (d Direction) String() string {
	if d == Serverbound {
		return "serverbound"
	}
	return "clientbound"
}

// ParseDirection возвращает направление по имени из таблицы идентификаторов.
func ParseDirection(name string) (Direction, bool) {
	switch name {
	case "serverbound":
		return Serverbound, true
	case "clientbound":
		return Clientbound, true
	}
	return 0, false
}

// Intent: запрошенное в рукопожатии следующее состояние.
type Intent uint8

const (
	IntentStatus Intent = iota
	IntentLogin
	IntentTransfer
)

func (i Intent) String() string {
	switch i {
	case IntentStatus:
		return "status"
	case IntentLogin:
		return "login"
	case IntentTransfer:
		return "transfer"
	}
	return fmt.Sprintf("intent(%d)", uint8(i))
}
