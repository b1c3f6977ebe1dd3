package server

import (
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"unicode"

	"vibefeed/internal/feed"
	"vibefeed/internal/middleware"
	"vibefeed/internal/models"
	"vibefeed/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// mapServiceError picks the HTTP status for an error coming out of a service.
func mapServiceError(err error) int {
	switch models.ErrorCode(err) {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation, models.CodeConflict:
		return fiber.StatusBadRequest
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeUnauthorized, models.CodeAuthRequired, models.CodeAuthInvalid:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError writes err with the status mapServiceError picks and logs
// anything that ends up as a 500.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := mapServiceError(err)
	if status == fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed", "error", err)
		if models.ErrorCode(err) == "" {
			err = models.NewInternalError(err)
		}
	}
	return models.RespondWithError(c, status, err)
}

// parsePage reads the page and limit query parameters. Non-numeric values
// count as absent; feed.NewPageRequest clamps the rest.
func parsePage(c *fiber.Ctx, defaultLimit int) feed.PageRequest {
	return feed.NewPageRequest(c.QueryInt("page", feed.DefaultPage), c.QueryInt("limit", defaultLimit))
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "userId" -> "Invalid user ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// queryUint parses an optional numeric query filter. Zero means absent.
func queryUint(c *fiber.Ctx, key string) uint {
	v := c.QueryInt(key, 0)
	if v < 0 {
		return 0
	}
	return uint(v)
}

// readFormFile loads a multipart file field. ok is false when the field is absent.
func readFormFile(c *fiber.Ctx, field string) (file storage.File, ok bool, err error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) {
			return storage.File{}, false, nil
		}
		return storage.File{}, false, models.NewValidationError("Invalid multipart body")
	}
	content, err := readMultipart(header)
	if err != nil {
		return storage.File{}, false, models.NewValidationError("Unable to read uploaded file")
	}
	return storage.File{
		Filename:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, true, nil
}

func readMultipart(header *multipart.FileHeader) ([]byte, error) {
	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return io.ReadAll(src)
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}
