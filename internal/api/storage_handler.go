package api

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/service"
	"account-service/internal/storage"
)

type StorageHandler struct {
	storageService service.StorageService
}

func NewStorageHandler(storageService service.StorageService) *StorageHandler {
	return &StorageHandler{storageService: storageService}
}

// formFile opens the multipart "file" field. When ok is false the 400 has
// been written and err is what the handler should return.
func formFile(c *fiber.Ctx) (file service.UploadFile, closeFile func(), ok bool, err error) {
	fh, ferr := c.FormFile("file")
	if ferr != nil {
		return service.UploadFile{}, nil, false, errorJSON(c, fiber.StatusBadRequest, codeValidation, "No file received")
	}

	f, ferr := fh.Open()
	if ferr != nil {
		return service.UploadFile{}, nil, false, errorJSON(c, fiber.StatusBadRequest, codeValidation, "Cannot read uploaded file")
	}

	return service.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	}, func() { f.Close() }, true, nil
}

// wildcardPath returns the key captured by a trailing "*" route segment.
func wildcardPath(c *fiber.Ctx) string {
	p := c.Params("*")
	if unescaped, err := url.PathUnescape(p); err == nil {
		return unescaped
	}
	return p
}

func (h *StorageHandler) Test(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Storage module is working!"})
}

func (h *StorageHandler) Upload(c *fiber.Ctx) error {
	category, err := storage.ParseCategory(c.FormValue("path"))
	if err != nil {
		return respondError(c, err)
	}

	file, closeFile, ok, err := formFile(c)
	if !ok {
		return err
	}
	defer closeFile()

	res, err := h.storageService.Upload(c.UserContext(), category, file)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *StorageHandler) Replace(c *fiber.Ctx) error {
	category, err := storage.ParseCategory(c.FormValue("path"))
	if err != nil {
		return respondError(c, err)
	}

	file, closeFile, ok, err := formFile(c)
	if !ok {
		return err
	}
	defer closeFile()

	res, err := h.storageService.Replace(c.UserContext(), category, c.FormValue("oldPath"), file)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *StorageHandler) List(c *fiber.Ctx) error {
	files, err := h.storageService.List(c.UserContext(), c.Query("prefix"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"files": files})
}

func (h *StorageHandler) Get(c *fiber.Ctx) error {
	key := wildcardPath(c)

	obj, err := h.storageService.Get(c.UserContext(), key)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", storage.BaseName(key)))
	size := int(obj.Size)
	if size <= 0 {
		size = -1
	}
	// fasthttp closes the body once it is written
	return c.SendStream(obj.Body, size)
}

func (h *StorageHandler) Delete(c *fiber.Ctx) error {
	key := wildcardPath(c)

	if err := h.storageService.Delete(c.UserContext(), key); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "File deleted successfully",
		"path":    key,
	})
}

func (h *StorageHandler) SignedURL(c *fiber.Ctx) error {
	key := wildcardPath(c)

	expiresIn := 0
	if raw := c.Query("expiresIn"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, codeValidation, "expiresIn must be a number")
		}
		if v == 0 {
			// zero would silently fall back to the default
			return errorJSON(c, fiber.StatusBadRequest, codeValidation, "expiresIn must be positive")
		}
		expiresIn = v
	}

	signed, err := h.storageService.SignedURL(c.UserContext(), key, expiresIn)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"url": signed})
}

func (h *StorageHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.storageService.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}
