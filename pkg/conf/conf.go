package conf

import (
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

// EnvironmentPrefix is prepended to every flag name to form its environment
// variable, e.g. "log" becomes "CHRONOS_LOG".
const EnvironmentPrefix = "CHRONOS"

var (
	app = kingpin.New("chronos", "No help available")

	// Default flags and values.
	logLevelFlag = NewStringFlag(
		"log",
		"Log level for chronos: debug, info, warn, error, fatal, panic",
		"error",
	)

	// DumpConfigFlag name includes a dash to exclude it from dumping.
	DumpConfigFlag = NewBoolFlag("config-dump", "Dump configuration as environment script.", false)

	isEnvParsed = false
)

// SetHelp sets the help message for the CLI.
// We need to expose this function so other packages can set the app help.
func SetHelp(help string) {
	app.Help = help
}

// SetAppName sets application name for CLI output.
// We need to expose this function so other packages can set the app name.
func SetAppName(name string) {
	app.Name = name
}

// AppName returns specified app name.
func AppName() string {
	return app.Name
}

// LogLevel returns the configured logrus level from the log flag or its
// environment variable. If the given level cannot be parsed, it falls back to
// the default.
func LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(logLevelFlag.Value())
	if err == nil {
		return level
	}

	level, err = logrus.ParseLevel(logLevelFlag.defaultValue)
	if err == nil {
		return level
	}

	// Programmer error.
	panic(errors.Wrap(err, "parsing log level failed"))
}

// ParseFlags parses both the command line flags of the process and the
// environment variables.
func ParseFlags() error {
	_, err := app.Parse(os.Args[1:])
	if err == nil {
		isEnvParsed = true
		return nil
	}

	return errors.Wrap(err, "could not parse command line flags")
}

// ParseEnv parses only the environment for flag values. It can be run
// multiple times.
func ParseEnv() error {
	_, err := app.Parse([]string{})
	if err == nil {
		isEnvParsed = true
		return nil
	}

	return errors.Wrap(err, "could not parse environment flags")
}

// getFlagsDefinition returns name, current value, default and description for
// every registered flag, in registration order.
func getFlagsDefinition() (flags []struct{ Name, Value, Default, Help string }) {
	for _, flag := range app.Model().Flags {
		// Skip kingpin builtin flags and flags with dashes in their names;
		// they are not compatible with environment based configuration.
		if strings.Contains(flag.Name, "-") {
			continue
		}

		// Values are basic types (string, int, bool), time.Duration or a
		// string slice, serialized to string below.
		var value interface{}

		// First handle the internal flag implementations of this package.
		if listValue, ok := flag.Value.(*StringListValue); ok {
			value = listValue.String()
		} else {
			// Use reflection to extract the value hidden in the unexported
			// kingpin implementation.
			elem := reflect.ValueOf(flag.Value).Elem()

			switch elem.Kind() {
			case reflect.Int64, reflect.Int:
				// Durations are stored as their int64 nanosecond count.
				value = time.Duration(elem.Int())

			case reflect.Struct:
				// Kingpin value structs keep the target pointer in field "v".
				// File flags wrap the path together with a stat check and have
				// no such field, but serialize themselves correctly.
				field := elem.FieldByName("v")
				if !field.IsValid() {
					value = flag.Value.String()
					break
				}
				valueInField := field.Elem()

				switch valueInField.Kind() {
				case reflect.String:
					value = valueInField.String()
				case reflect.Bool:
					value = valueInField.Bool()
				case reflect.Int64, reflect.Int:
					value = valueInField.Int()
				case reflect.Slice:
					value = flag.Value.String()
				default:
					value = fmt.Sprintf("unhandled flag %s kind=%s", flag.Name, valueInField.Kind())
				}

			default:
				// Remaining kingpin values, e.g. the net.IP based ones,
				// serialize themselves.
				value = flag.Value.String()
			}
		}

		flags = append(flags, struct{ Name, Value, Default, Help string }{
			Name:    flag.Name,
			Help:    flag.Help,
			Default: strings.Join(flag.Default, ","),
			Value:   fmt.Sprintf("%v", value),
		})
	}

	return flags
}

// DumpConfig dumps environment based configuration with current values of flags.
func DumpConfig() string {
	return DumpConfigMap(nil)
}

// DumpConfigMap dumps environment based configuration with current values
// overwritten by the given flagMap. Includes "allexport" directives for bash.
func DumpConfigMap(flagMap map[string]string) string {
	buffer := &bytes.Buffer{}

	buffer.WriteString("# Export are values.\n")
	buffer.WriteString("set -o allexport\n")

	for _, fd := range getFlagsDefinition() {
		fmt.Fprintf(buffer, "\n# %s\n", fd.Help)
		if fd.Default != "" {
			fmt.Fprintf(buffer, "# Default: %s\n", fd.Default)
		}

		// Override current values with those provided in flagMap.
		value := fd.Value
		if mapValue, ok := flagMap[fd.Name]; ok {
			value = mapValue
		}

		fmt.Fprintf(buffer, "%s_%s=%v\n", EnvironmentPrefix, strings.ToUpper(fd.Name), value)
	}

	buffer.WriteString("set +o allexport")
	return buffer.String()
}

// GetFlags returns all registered flags as a map with their current values.
func GetFlags() map[string]string {
	flagsMap := map[string]string{}
	for _, flag := range getFlagsDefinition() {
		flagsMap[flag.Name] = flag.Value
	}
	return flagsMap
}
