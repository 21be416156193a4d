package server

import (
	"strconv"
	"strings"

	"github.com/smallbiznis/bsma/pkg/db/pagination"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

type pageQuery struct {
	PageToken string `form:"page_token"`
	PageSize  string `form:"page_size"`
}

func (q pageQuery) toPagination() (pagination.Pagination, error) {
	size, err := parseOptionalInt(q.PageSize)
	if err != nil || size < 0 {
		return pagination.Pagination{}, newValidationError("page_size", "invalid_page_size", "invalid page size")
	}
	return pagination.Pagination{
		PageToken: strings.TrimSpace(q.PageToken),
		PageSize:  size,
	}, nil
}
