package handler

import "github.com/erp/ledger/internal/interfaces/http/dto"

// APIResponse is the typed form of dto.Response, used by clients and tests
// to decode the data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// CountData represents count data in response
type CountData struct {
	Count int `json:"count"`
}
