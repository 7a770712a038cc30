//go:build tools

// Package tools pins the oapi-codegen version used to check and generate
// client code from api/openapi.yaml. Excluded from normal builds.
package tools

import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
)
