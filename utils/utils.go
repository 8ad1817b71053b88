package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the success envelope returned by every endpoint
type APIResponse struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
}

// Respond writes the success envelope with the given status.
func Respond(c *fiber.Ctx, status int, data interface{}, message string) error {
	return c.Status(status).JSON(APIResponse{
		Success:    status < fiber.StatusBadRequest,
		StatusCode: status,
		Data:       data,
		Message:    message,
	})
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ParseID parses a positive numeric path identifier.
func ParseID(s string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Pagination describes one page of an offset-paginated listing
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

const (
	maxPageLimit = 100
	maxPage      = math.MaxInt32
)

// ParsePagination reads page and limit from the query string. Missing or
// invalid values fall back to page 1 and defaultLimit.
func ParsePagination(c *fiber.Ctx, defaultLimit int) (page, limit, offset int) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	limit, err = strconv.Atoi(c.Query("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit, (page - 1) * limit
}

func NewPagination(page, limit int, total int64) Pagination {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}

// SplitList splits a comma separated value, trimming blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
