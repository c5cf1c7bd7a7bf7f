// Package service provides the business logic layer for the library:
// catalog management, membership, circulation, reservations, fines,
// notifications, and reporting.
package service

import (
	"github.com/pustakapp/pustak-server/internal/validation"
)

// validate is the shared validator instance for request validation.
var validate = validation.New()
