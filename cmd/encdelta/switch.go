package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// switchValue is an auto|on|off flag. Auto follows whether the output is a
// terminal.
type switchValue string

const (
	switchAuto switchValue = "auto"
	switchOn   switchValue = "on"
	switchOff  switchValue = "off"
)

var _ pflag.Value = (*switchValue)(nil)

func parseSwitch(s string) (switchValue, error) {
	switch v := switchValue(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return switchAuto, nil
	case switchAuto, switchOn, switchOff:
		return v, nil
	}
	return "", fmt.Errorf("%q is not one of auto|on|off", s)
}

func (v *switchValue) Set(s string) error {
	parsed, err := parseSwitch(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v *switchValue) String() string { return string(*v) }
func (v *switchValue) Type() string   { return "auto|on|off" }

// enabled resolves the switch against f.
func (v switchValue) enabled(f *os.File) bool {
	switch v {
	case switchOn:
		return true
	case switchOff:
		return false
	default:
		return isTerminal(f)
	}
}

func addSwitch(flags *pflag.FlagSet, name, usage string) {
	v := switchAuto
	flags.Var(&v, name, usage)
}

// switchFlag reads a flag registered with addSwitch.
func switchFlag(cmd *cobra.Command, name string) switchValue {
	if f := cmd.Flags().Lookup(name); f != nil {
		if v, ok := f.Value.(*switchValue); ok {
			return *v
		}
	}
	return switchAuto
}
