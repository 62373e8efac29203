package entity

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// FormTime принимает время в формате HTML-форм админки (без секунд и зоны)
type FormTime struct {
	time.Time
}

const formTimeLayout = "2006-01-02T15:04"

func (ft *FormTime) UnmarshalJSON(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("invalid time value: %s", string(b))
	}
	s := string(b[1 : len(b)-1]) // Remove quotes
	t, err := time.Parse(formTimeLayout, s)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

func (ft FormTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ft.Format(formTimeLayout) + `"`), nil
}

func (ft FormTime) Value() (driver.Value, error) {
	return ft.Time, nil
}

func (ft *FormTime) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		ft.Time = v
	case []byte:
		t, err := time.Parse("2006-01-02 15:04:05", string(v))
		if err != nil {
			return err
		}
		ft.Time = t
	default:
		return fmt.Errorf("cannot scan type %T into FormTime", value)
	}
	return nil
}
