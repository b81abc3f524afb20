package util

import (
	"reflect"

	"github.com/pkg/errors"
)

// IsStructInitialized 检查结构体的所有导出字段是否都已初始化
// 指针、接口和 map 类型的零值字段视为未初始化
func IsStructInitialized(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("not a struct")
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanInterface() {
			continue
		}

		switch field.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			if field.IsNil() {
				return errors.Errorf("field %s is not initialized", t.Field(i).Name)
			}
		default:
		}
	}

	return nil
}
