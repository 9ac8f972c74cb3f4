package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList хранит список строк в одной jsonb-колонке PostgreSQL
type StringList []string

// Value сериализует список для записи в БД
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan десериализует значение jsonb-колонки
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for string list: %T", value)
	}

	return json.Unmarshal(data, l)
}
