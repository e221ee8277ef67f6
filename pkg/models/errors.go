package models

import "errors"

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrQueryTooShort    = errors.New("query too short")
	ErrSnapshotNotFound = errors.New("result snapshot not found")
)
