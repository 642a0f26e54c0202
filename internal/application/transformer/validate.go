package transformer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	return v
}

// decode unmarshals raw into out and runs struct validation.
// Every failure wraps domain.ErrValidation so callers can count it as a skip.
func (t *Transformer) decode(raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty record", domain.ErrValidation)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return t.validate(out)
}

func (t *Transformer) validate(record any) error {
	if err := t.validator.Struct(record); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", domain.ErrValidation, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// DecodeCustomer parses and validates a raw customer
func (t *Transformer) DecodeCustomer(raw json.RawMessage) (*Customer, error) {
	var c Customer
	if err := t.decode(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeProduct parses and validates a raw product
func (t *Transformer) DecodeProduct(raw json.RawMessage) (*Product, error) {
	var p Product
	if err := t.decode(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeOrder parses and validates a raw order
func (t *Transformer) DecodeOrder(raw json.RawMessage) (*Order, error) {
	var o Order
	if err := t.decode(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// DecodeDeleted parses the id-only payload of delete webhooks
func (t *Transformer) DecodeDeleted(raw json.RawMessage) (*DeletedRecord, error) {
	var d DeletedRecord
	if err := t.decode(raw, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ValidateCustomer checks an already decoded customer
func (t *Transformer) ValidateCustomer(c *Customer) error { return t.validate(c) }

// ValidateProduct checks an already decoded product
func (t *Transformer) ValidateProduct(p *Product) error { return t.validate(p) }

// ValidateOrder checks an already decoded order
func (t *Transformer) ValidateOrder(o *Order) error { return t.validate(o) }
