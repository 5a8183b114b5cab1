package clicfg

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/urfave/cli/v3"
)

var ErrCannotParseFlags = errors.New("cannot parse flags")

// ParseFlags fills the struct pointed to by s from the command's flags,
// matching fields by their `flag` tag. Only the field kinds the config
// structs actually use are supported.
func ParseFlags(c *cli.Command, s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: expected pointer to struct, got %T", ErrCannotParseFlags, s)
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)

		name := field.Tag.Get("flag")
		if name == "" || !value.CanSet() {
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			value.SetString(c.String(name))
		case reflect.Bool:
			value.SetBool(c.Bool(name))
		case reflect.Int, reflect.Int64:
			value.SetInt(int64(c.Int(name)))
		default:
			return fmt.Errorf("%w: unsupported field kind %s for flag %s", ErrCannotParseFlags, field.Type.Kind(), name)
		}
	}

	return nil
}
