// Package validation checks commands before any transaction is opened.
// Every violated rule yields its own error so the caller sees all problems
// at once; item rules address their field as items[i].<field>.
package validation

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/omslab/order-service/pkg/models"
	"github.com/omslab/order-service/pkg/result"
)

const (
	maxNameLength    = 200
	maxEmailLength   = 255
	maxProductLength = 200
)

type ItemInput struct {
	ProductName string
	Quantity    int
	UnitPrice   float64
}

type CreateOrderInput struct {
	CustomerName  string
	CustomerEmail string
	Items         []ItemInput
}

// UpdateOrderInput carries optional fields: nil means "leave unchanged",
// never "clear".
type UpdateOrderInput struct {
	ID            string
	CustomerName  *string
	CustomerEmail *string
	Status        *string
	Items         []ItemInput
}

func ValidateCreateOrder(in CreateOrderInput) []result.Error {
	var errs []result.Error

	if strings.TrimSpace(in.CustomerName) == "" {
		errs = append(errs, result.ValidationError("customerName", "Customer name is required"))
	} else if len(in.CustomerName) > maxNameLength {
		errs = append(errs, result.ValidationError("customerName",
			fmt.Sprintf("Customer name must not exceed %d characters", maxNameLength)))
	}

	errs = append(errs, validateEmail(in.CustomerEmail, true)...)

	if len(in.Items) == 0 {
		errs = append(errs, result.ValidationError("items", "At least one item is required"))
	}
	errs = append(errs, validateItems(in.Items)...)

	return errs
}

func ValidateUpdateOrder(in UpdateOrderInput) []result.Error {
	var errs []result.Error

	if strings.TrimSpace(in.ID) == "" {
		errs = append(errs, result.ValidationError("id", "Order ID is required"))
	}

	if in.CustomerName == nil && in.CustomerEmail == nil && in.Status == nil && in.Items == nil {
		errs = append(errs, result.ValidationError("", "At least one field must be provided for update"))
	}

	if in.CustomerName != nil {
		if strings.TrimSpace(*in.CustomerName) == "" {
			errs = append(errs, result.ValidationError("customerName", "Customer name must not be empty"))
		} else if len(*in.CustomerName) > maxNameLength {
			errs = append(errs, result.ValidationError("customerName",
				fmt.Sprintf("Customer name must not exceed %d characters", maxNameLength)))
		}
	}

	if in.CustomerEmail != nil {
		errs = append(errs, validateEmail(*in.CustomerEmail, true)...)
	}

	if in.Status != nil {
		if _, ok := models.ParseStatus(*in.Status); !ok {
			errs = append(errs, result.ValidationError("status",
				fmt.Sprintf("Invalid status %q", *in.Status)))
		}
	}

	if in.Items != nil {
		if len(in.Items) == 0 {
			errs = append(errs, result.ValidationError("items", "Items list must not be empty when provided"))
		}
		errs = append(errs, validateItems(in.Items)...)
	}

	return errs
}

func validateEmail(email string, required bool) []result.Error {
	var errs []result.Error
	if strings.TrimSpace(email) == "" {
		if required {
			errs = append(errs, result.ValidationError("customerEmail", "Customer email is required"))
		}
		return errs
	}
	if len(email) > maxEmailLength {
		errs = append(errs, result.ValidationError("customerEmail",
			fmt.Sprintf("Email must not exceed %d characters", maxEmailLength)))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs = append(errs, result.ValidationError("customerEmail", "Invalid email format"))
	}
	return errs
}

func validateItems(items []ItemInput) []result.Error {
	var errs []result.Error
	for i, item := range items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }

		if strings.TrimSpace(item.ProductName) == "" {
			errs = append(errs, result.ValidationError(field("productName"), "Product name is required"))
		} else if len(item.ProductName) > maxProductLength {
			errs = append(errs, result.ValidationError(field("productName"),
				fmt.Sprintf("Product name must not exceed %d characters", maxProductLength)))
		}
		if item.Quantity <= 0 {
			errs = append(errs, result.ValidationError(field("quantity"), "Quantity must be greater than 0"))
		}
		if item.UnitPrice <= 0 {
			errs = append(errs, result.ValidationError(field("unitPrice"), "Unit price must be greater than 0"))
		}
	}
	return errs
}
