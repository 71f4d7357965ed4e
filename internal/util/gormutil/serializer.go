package gormutil

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm/schema"
)

// ListSerializer stores []string as a comma-separated string. Items must not contain commas.
type ListSerializer struct{}

func (ListSerializer) Scan(ctx context.Context, field *schema.Field, dst reflect.Value, dbValue any) error {
	if field.FieldType != reflect.TypeFor[[]string]() {
		return fmt.Errorf("bad field value type: %v", field.FieldType)
	}
	val := field.ReflectValueOf(ctx, dst)
	var data string
	switch v := dbValue.(type) {
	case nil:
	case []byte:
		data = string(v)
	case string:
		data = v
	default:
		return fmt.Errorf("bad db value type: %T", dbValue)
	}
	if data == "" {
		val.Set(reflect.Zero(field.FieldType))
		return nil
	}
	val.Set(reflect.ValueOf(strings.Split(data, ",")))
	return nil
}

func (ListSerializer) Value(ctx context.Context, field *schema.Field, dst reflect.Value, fieldValue any) (any, error) {
	items, ok := fieldValue.([]string)
	if !ok {
		return nil, fmt.Errorf("bad value type %T", fieldValue)
	}
	for _, item := range items {
		if strings.Contains(item, ",") {
			return nil, fmt.Errorf("list item %q contains a comma", item)
		}
	}
	return strings.Join(items, ","), nil
}

func init() {
	schema.RegisterSerializer("list", ListSerializer{})
}
