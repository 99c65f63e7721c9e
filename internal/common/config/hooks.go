package config

import (
	"os"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var CustomHooks = []viper.DecoderConfigOption{
	viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		FileModeHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)),
}

// FileModeHookFunc decodes octal strings such as "0755" into an os.FileMode.
// Integers are taken as-is, which is what yaml produces for an unquoted 0755.
func FileModeHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		// check that src and target types are valid
		if f.Kind() != reflect.String || t != reflect.TypeOf(os.FileMode(0)) {
			return data, nil
		}
		mode, err := strconv.ParseUint(data.(string), 8, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid file mode %q", data)
		}
		return os.FileMode(mode), nil
	}
}
