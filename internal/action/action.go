package action

import (
	"fmt"
	"strings"
)

// Kind is a lifecycle action that can be applied to a managed component.
type Kind int

const (
	Install Kind = iota
	Start
	Stop
	Status
	Restart
	ReapplyConfigs
)

// All lists every action kind in declaration order.
var All = []Kind{Install, Start, Stop, Status, Restart, ReapplyConfigs}

var kindNames = map[Kind]string{
	Install:        "install",
	Start:          "start",
	Stop:           "stop",
	Status:         "status",
	Restart:        "restart",
	ReapplyConfigs: "reapply_configs",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts the action name in any case, with or without separators,
// so "Start", "start", "REAPPLY_CONFIGS" and "reapply-configs" are all valid.
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("_", "", "-", "").Replace(normalized)
	for kind, name := range kindNames {
		if strings.ReplaceAll(name, "_", "") == normalized {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// MarshalText lets kinds be used directly as YAML/JSON keys and values.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid action kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	kind, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
