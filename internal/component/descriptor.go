package component

import (
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/mochivi/lifecycle-agent/internal/action"
)

var validate = validator.New()

type CredentialPurpose string

const (
	PurposePrincipal CredentialPurpose = "principal"
	PurposeKeytab    CredentialPurpose = "keytab"
)

// CredentialKey points at the configuration field holding a credential, not at the credential itself.
type CredentialKey struct {
	Section string `yaml:"section" validate:"required"`
	Field   string `yaml:"field" validate:"required"`
}

func (k CredentialKey) String() string {
	return k.Section + "/" + k.Field
}

type ExecutorKind string

const (
	ExecutorDummy  ExecutorKind = "dummy"
	ExecutorScript ExecutorKind = "script"
)

type ExecutorConfig struct {
	Kind     ExecutorKind      `yaml:"kind" validate:"omitempty,oneof=dummy script"`
	Commands map[string]string `yaml:"commands" validate:"dive,keys,required,endkeys,required"`
	PidFile  string            `yaml:"pid_file"`
	WorkDir  string            `yaml:"work_dir"`
}

// DescriptorConfig is the literal form of a descriptor, as written in the registry file.
type DescriptorConfig struct {
	Name        string                              `yaml:"name" validate:"required"`
	Credentials map[CredentialPurpose]CredentialKey `yaml:"credentials" validate:"dive,keys,required,endkeys"`
	Actions     []string                            `yaml:"actions"` // empty means every action
	Executor    ExecutorConfig                      `yaml:"executor"`
}

// ExecutorSpec is the parsed executor section of a descriptor.
type ExecutorSpec struct {
	Kind     ExecutorKind
	Commands map[action.Kind]string
	PidFile  string
	WorkDir  string
}

// Descriptor identifies a managed component and the configuration keys it uses.
// It is immutable once built; accessors hand out copies.
type Descriptor struct {
	name        string
	credentials map[CredentialPurpose]CredentialKey
	actions     map[action.Kind]struct{}
	executor    ExecutorSpec
}

func NewDescriptor(cfg DescriptorConfig) (*Descriptor, error) {
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidDescriptor, cfg.Name, err)
	}

	actions := make(map[action.Kind]struct{}, len(action.All))
	if len(cfg.Actions) == 0 {
		for _, kind := range action.All {
			actions[kind] = struct{}{}
		}
	}
	for _, name := range cfg.Actions {
		kind, err := action.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidDescriptor, cfg.Name, err)
		}
		actions[kind] = struct{}{}
	}

	executor := ExecutorSpec{
		Kind:     cfg.Executor.Kind,
		Commands: make(map[action.Kind]string, len(cfg.Executor.Commands)),
		PidFile:  cfg.Executor.PidFile,
		WorkDir:  cfg.Executor.WorkDir,
	}
	if executor.Kind == "" {
		executor.Kind = ExecutorDummy
	}
	for name, command := range cfg.Executor.Commands {
		kind, err := action.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w %q: command for %v", ErrInvalidDescriptor, cfg.Name, err)
		}
		if _, ok := actions[kind]; !ok {
			return nil, fmt.Errorf("%w %q: command configured for unsupported action %s", ErrInvalidDescriptor, cfg.Name, kind)
		}
		executor.Commands[kind] = command
	}

	return &Descriptor{
		name:        cfg.Name,
		credentials: maps.Clone(cfg.Credentials),
		actions:     actions,
		executor:    executor,
	}, nil
}

func (d *Descriptor) Name() string {
	return d.name
}

func (d *Descriptor) LookupCredential(purpose CredentialPurpose) (CredentialKey, error) {
	key, ok := d.credentials[purpose]
	if !ok {
		return CredentialKey{}, fmt.Errorf("%w %q for component %s", ErrUnknownCredentialPurpose, purpose, d.name)
	}
	return key, nil
}

// CredentialPurposes returns the purposes this component has credential keys for, sorted.
func (d *Descriptor) CredentialPurposes() []CredentialPurpose {
	purposes := make([]CredentialPurpose, 0, len(d.credentials))
	for purpose := range d.credentials {
		purposes = append(purposes, purpose)
	}
	slices.Sort(purposes)
	return purposes
}

func (d *Descriptor) Supports(kind action.Kind) bool {
	_, ok := d.actions[kind]
	return ok
}

// SupportedActions returns the supported actions in declaration order.
func (d *Descriptor) SupportedActions() []action.Kind {
	kinds := make([]action.Kind, 0, len(d.actions))
	for kind := range d.actions {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (d *Descriptor) Executor() ExecutorSpec {
	spec := d.executor
	spec.Commands = maps.Clone(d.executor.Commands)
	return spec
}

// Command returns the command configured for the action, if any.
func (d *Descriptor) Command(kind action.Kind) (string, bool) {
	command, ok := d.executor.Commands[kind]
	return command, ok && command != ""
}
