package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	optionalBoolTypeName     = "bool"
	optionalBoolUnset        = "unset"
	optionalBoolImplicit     = "true"
	flagPrefix               = "--"
	flagAssignmentFormat     = "--%s=%s"
	errorInvalidOptionalBool = "invalid boolean value %q for --%s; accepted values: true, false, yes, no, on, off, 1, 0"
)

// parseBoolLiteral accepts strconv literals plus yes/no, y/n and on/off in any case.
func parseBoolLiteral(input string) (bool, bool) {
	literal := strings.ToLower(strings.TrimSpace(input))
	switch literal {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	}
	parsed, err := strconv.ParseBool(literal)
	return parsed, err == nil
}

// optionalBool leaves its target nil until the flag is given, so that an absent flag
// defers to configuration.
type optionalBool struct {
	target **bool
	name   string
}

func (flag optionalBool) Set(input string) error {
	if strings.TrimSpace(input) == "" {
		input = optionalBoolImplicit
	}
	parsed, valid := parseBoolLiteral(input)
	if !valid {
		return fmt.Errorf(errorInvalidOptionalBool, input, flag.name)
	}
	*flag.target = &parsed
	return nil
}

func (flag optionalBool) String() string {
	if flag.target == nil || *flag.target == nil {
		return optionalBoolUnset
	}
	return strconv.FormatBool(**flag.target)
}

func (optionalBool) Type() string {
	return optionalBoolTypeName
}

// registerOptionalBooleanFlag binds name to target. A bare --name means true.
func registerOptionalBooleanFlag(flagSet *pflag.FlagSet, target **bool, name string, usage string) {
	*target = nil
	flag := flagSet.VarPF(optionalBool{target: target, name: name}, name, "", usage)
	flag.DefValue = optionalBoolUnset
	flag.NoOptDefVal = optionalBoolImplicit
}

// normalizeBooleanFlagArguments joins "--flag value" into "--flag=value" when flag is boolean
// anywhere in the command tree and value is a boolean literal. Other values stay positional.
func normalizeBooleanFlagArguments(command *cobra.Command, arguments []string) []string {
	booleanFlags := map[string]struct{}{}
	var collect func(current *cobra.Command)
	collect = func(current *cobra.Command) {
		for _, flagSet := range []*pflag.FlagSet{current.PersistentFlags(), current.Flags()} {
			flagSet.VisitAll(func(flag *pflag.Flag) {
				if flag.Value.Type() == optionalBoolTypeName {
					booleanFlags[flag.Name] = struct{}{}
				}
			})
		}
		for _, child := range current.Commands() {
			collect(child)
		}
	}
	collect(command)

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == flagPrefix {
			return append(normalized, arguments[index:]...)
		}
		name, isLongFlag := strings.CutPrefix(argument, flagPrefix)
		if _, isBoolean := booleanFlags[name]; isLongFlag && isBoolean && !strings.Contains(name, "=") && index+1 < len(arguments) {
			if _, isLiteral := parseBoolLiteral(arguments[index+1]); isLiteral && !strings.HasPrefix(arguments[index+1], "-") {
				normalized = append(normalized, fmt.Sprintf(flagAssignmentFormat, name, arguments[index+1]))
				index++
				continue
			}
		}
		normalized = append(normalized, argument)
	}
	return normalized
}

// boolOr returns the flag value when set and fallback otherwise.
func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
