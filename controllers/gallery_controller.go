package controller

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"unihub/middleware"
	"unihub/models"
	"unihub/utils"
)

const (
	galleryPageLimit      = 40
	galleryFolder         = "gallery"
	bulkDeleteConcurrency = 8
)

// Query sort keys mapped to columns.
var gallerySortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"viewCount": "view_count",
	"category":  "category",
	"mediaType": "media_type",
}

type GalleryController struct {
	DB    *gorm.DB
	Media utils.MediaStore
}

func NewGalleryController(db *gorm.DB, media utils.MediaStore) *GalleryController {
	return &GalleryController{DB: db, Media: media}
}

type GalleryStats struct {
	TotalItems     int64               `json:"totalItems"`
	ActiveItems    int64               `json:"activeItems"`
	InactiveItems  int64               `json:"inactiveItems"`
	ImageCount     int64               `json:"imageCount"`
	VideoCount     int64               `json:"videoCount"`
	TotalViews     int64               `json:"totalViews"`
	CategoryCounts []CategoryCount     `json:"categoryCounts"`
	RecentItems    []RecentGalleryItem `json:"recentItems"`
}

type CategoryCount struct {
	Category string `json:"_id"`
	Count    int64  `json:"count"`
}

type RecentGalleryItem struct {
	ID        uint             `json:"id"`
	Title     string           `json:"title"`
	MediaType models.MediaType `json:"mediaType"`
	Category  string           `json:"category"`
	ViewCount int              `json:"viewCount"`
	CreatedAt time.Time        `json:"createdAt"`
}

func (gc *GalleryController) ListItems(c *fiber.Ctx) error {
	page, limit, offset := utils.ParsePagination(c, galleryPageLimit)

	q := gc.DB.Model(&models.Gallery{})

	switch isActive := c.Query("isActive"); isActive {
	case "all":
	case "":
		q = q.Where("is_active = ?", true)
	default:
		q = q.Where("is_active = ?", isActive == "true")
	}
	if category := c.Query("category"); category != "" && category != "all" {
		q = q.Where("category = ?", category)
	}
	if mediaType := c.Query("mediaType"); mediaType != "" && mediaType != "all" {
		q = q.Where("media_type = ?", mediaType)
	}
	if search := strings.ToLower(strings.TrimSpace(c.Query("search"))); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(CAST(tags AS TEXT)) LIKE ?", like, like, like)
	}
	q = q.Session(&gorm.Session{})

	sortColumn, ok := gallerySortColumns[c.Query("sortBy", "createdAt")]
	if !ok {
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(c.Query("sortOrder"), "asc") {
		sortOrder = "ASC"
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	items := []models.Gallery{}
	if err := q.Preload("UploadedBy").
		Order(fmt.Sprintf("%s %s", sortColumn, sortOrder)).
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, fiber.Map{
		"galleryItems": items,
		"pagination":   utils.NewPagination(page, limit, total),
	}, "Gallery items retrieved successfully")
}

func (gc *GalleryController) Categories(c *fiber.Ctx) error {
	categories := []string{}
	if err := gc.DB.Model(&models.Gallery{}).
		Distinct().
		Order("category").
		Pluck("category", &categories).Error; err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, categories, "Categories retrieved successfully")
}

// GetItem returns one item and counts the view.
func (gc *GalleryController) GetItem(c *fiber.Ctx) error {
	item, err := gc.loadItem(c.Params("id"), true)
	if err != nil {
		return err
	}
	if err := item.IncrementViewCount(gc.DB); err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, item, "Gallery item retrieved successfully")
}

func (gc *GalleryController) CreateItem(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	fields, err := readFields(c)
	if err != nil {
		return err
	}

	title := fields.Trimmed("title")
	mediaType := models.MediaType(strings.ToLower(fields.Trimmed("mediaType")))
	if title == "" || mediaType == "" {
		return utils.BadRequest("Title and media type are required")
	}
	if !mediaType.Valid() {
		return utils.BadRequest("Media type must be either 'image' or 'video'")
	}

	file := middleware.UploadedFile(c)
	if file == nil {
		return utils.BadRequest("Media file is required")
	}
	if file.IsVideo() != (mediaType == models.MediaVideo) {
		return utils.BadRequest("Uploaded file does not match media type")
	}

	tags, _, err := fields.StringList("tags")
	if err != nil {
		return err
	}
	category := fields.Trimmed("category")
	if category == "" {
		category = "general"
	}

	uploaded, err := gc.Media.Upload(c.UserContext(), file.Path, utils.UploadOptions{
		ResourceType: string(mediaType),
		Folder:       galleryFolder,
	})
	if err != nil {
		utils.LogError("gallery_upload", err, map[string]interface{}{"file": file.Filename})
		return utils.Internal("Failed to upload media to cloud storage")
	}

	item := models.Gallery{
		Title:        title,
		Description:  fields.Trimmed("description"),
		MediaType:    mediaType,
		Category:     category,
		Tags:         datatypes.JSONSlice[string](tags),
		UploadedByID: &user.ID,
		IsActive:     true,
	}
	applyUpload(&item, uploaded)

	if err := gc.DB.Create(&item).Error; err != nil {
		if derr := gc.Media.Delete(c.UserContext(), uploaded.PublicID); derr != nil {
			utils.LogError("gallery_upload_rollback", derr, map[string]interface{}{"public_id": uploaded.PublicID})
		}
		return err
	}
	item.UploadedBy = user

	return utils.Respond(c, fiber.StatusCreated, item, "Gallery item created successfully")
}

// UpdateItem edits metadata and optionally replaces the media. The old
// remote object is removed before the new one is uploaded; if that removal
// fails nothing is changed.
func (gc *GalleryController) UpdateItem(c *fiber.Ctx) error {
	item, err := gc.loadItem(c.Params("id"), true)
	if err != nil {
		return err
	}

	fields, err := readFields(c)
	if err != nil {
		return err
	}

	if fields.Has("title") {
		title := fields.Trimmed("title")
		if title == "" {
			return utils.BadRequest("Title cannot be empty")
		}
		item.Title = title
	}
	if fields.Has("description") {
		item.Description = fields.Trimmed("description")
	}
	if fields.Has("category") {
		item.Category = fields.Trimmed("category")
	}
	if tags, ok, err := fields.StringList("tags"); err != nil {
		return err
	} else if ok {
		item.Tags = datatypes.JSONSlice[string](tags)
	}
	if active, ok, err := fields.Bool("isActive"); err != nil {
		return err
	} else if ok {
		item.IsActive = active
	}

	if file := middleware.UploadedFile(c); file != nil {
		if file.IsVideo() != (item.MediaType == models.MediaVideo) {
			return utils.BadRequest("Uploaded file does not match media type")
		}
		if err := gc.Media.Delete(c.UserContext(), item.PublicID); err != nil {
			utils.LogError("gallery_media_delete", err, map[string]interface{}{"public_id": item.PublicID})
			return utils.Internal("Failed to delete existing media from cloud storage")
		}

		uploaded, err := gc.Media.Upload(c.UserContext(), file.Path, utils.UploadOptions{
			ResourceType: string(item.MediaType),
			Folder:       galleryFolder,
		})
		if err != nil {
			utils.LogError("gallery_upload", err, map[string]interface{}{"file": file.Filename})
			return utils.Internal("Failed to upload new media")
		}
		applyUpload(item, uploaded)
	}

	if err := gc.DB.Model(item).
		Select("title", "description", "category", "tags", "is_active",
			"media_url", "thumbnail_url", "public_id", "metadata").
		Updates(item).Error; err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, item, "Gallery item updated successfully")
}

func (gc *GalleryController) DeleteItem(c *fiber.Ctx) error {
	item, err := gc.loadItem(c.Params("id"), false)
	if err != nil {
		return err
	}

	if err := gc.Media.Delete(c.UserContext(), item.PublicID); err != nil {
		utils.LogError("gallery_media_delete", err, map[string]interface{}{"public_id": item.PublicID})
		return utils.Internal("Failed to delete media from cloud storage")
	}
	if err := gc.DB.Delete(item).Error; err != nil {
		return err
	}

	return utils.Respond(c, fiber.StatusOK, fiber.Map{}, "Gallery item deleted successfully")
}

func (gc *GalleryController) Stats(c *fiber.Ctx) error {
	var stats GalleryStats
	base := gc.DB.Model(&models.Gallery{}).Session(&gorm.Session{})

	counts := []struct {
		dst   *int64
		query string
		args  []interface{}
	}{
		{&stats.TotalItems, "", nil},
		{&stats.ActiveItems, "is_active = ?", []interface{}{true}},
		{&stats.InactiveItems, "is_active = ?", []interface{}{false}},
		{&stats.ImageCount, "media_type = ?", []interface{}{models.MediaImage}},
		{&stats.VideoCount, "media_type = ?", []interface{}{models.MediaVideo}},
	}
	for _, cnt := range counts {
		q := base
		if cnt.query != "" {
			q = q.Where(cnt.query, cnt.args...)
		}
		if err := q.Count(cnt.dst).Error; err != nil {
			return err
		}
	}

	if err := base.Select("COALESCE(SUM(view_count), 0)").Scan(&stats.TotalViews).Error; err != nil {
		return err
	}

	stats.CategoryCounts = []CategoryCount{}
	if err := base.Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&stats.CategoryCounts).Error; err != nil {
		return err
	}

	var recent []models.Gallery
	if err := base.Select("id", "title", "media_type", "category", "view_count", "created_at").
		Order("created_at DESC").
		Limit(5).
		Find(&recent).Error; err != nil {
		return err
	}
	stats.RecentItems = make([]RecentGalleryItem, 0, len(recent))
	for _, g := range recent {
		stats.RecentItems = append(stats.RecentItems, RecentGalleryItem{
			ID:        g.ID,
			Title:     g.Title,
			MediaType: g.MediaType,
			Category:  g.Category,
			ViewCount: g.ViewCount,
			CreatedAt: g.CreatedAt,
		})
	}

	return utils.Respond(c, fiber.StatusOK, stats, "Gallery statistics retrieved successfully")
}

// BulkDelete removes the remote media for every listed item concurrently,
// then deletes the rows in one statement once all remote deletions succeed.
func (gc *GalleryController) BulkDelete(c *fiber.Ctx) error {
	fields, err := readFields(c)
	if err != nil {
		return err
	}

	var ids []uint
	if _, err := fields.Decode("ids", &ids); err != nil || len(ids) == 0 {
		return utils.BadRequest("Please provide an array of gallery item IDs")
	}

	var items []models.Gallery
	if err := gc.DB.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return utils.NotFound("No gallery items found")
	}

	g, ctx := errgroup.WithContext(c.UserContext())
	g.SetLimit(bulkDeleteConcurrency)
	for _, item := range items {
		publicID := item.PublicID
		g.Go(func() error {
			return gc.Media.Delete(ctx, publicID)
		})
	}
	if err := g.Wait(); err != nil {
		utils.LogError("gallery_bulk_delete", err, map[string]interface{}{"count": len(items)})
		return utils.Internal("Failed to delete media from cloud storage")
	}

	found := make([]uint, 0, len(items))
	for _, item := range items {
		found = append(found, item.ID)
	}
	result := gc.DB.Where("id IN ?", found).Delete(&models.Gallery{})
	if result.Error != nil {
		return result.Error
	}

	return utils.Respond(c, fiber.StatusOK,
		fiber.Map{"deletedCount": result.RowsAffected},
		fmt.Sprintf("%d gallery items deleted successfully", result.RowsAffected))
}

func (gc *GalleryController) loadItem(rawID string, withUploader bool) (*models.Gallery, error) {
	id, ok := utils.ParseID(rawID)
	if !ok {
		return nil, utils.BadRequest("Invalid gallery item ID")
	}

	q := gc.DB
	if withUploader {
		q = q.Preload("UploadedBy")
	}

	var item models.Gallery
	if err := q.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("Gallery item not found")
		}
		return nil, err
	}
	return &item, nil
}

func applyUpload(item *models.Gallery, uploaded *utils.UploadResult) {
	item.MediaURL = uploaded.SecureURL
	item.ThumbnailURL = uploaded.Thumbnail()
	item.PublicID = uploaded.PublicID
	item.Metadata = datatypes.NewJSONType(models.MediaMetadata{
		Width:    uploaded.Width,
		Height:   uploaded.Height,
		Format:   uploaded.Format,
		Size:     uploaded.Bytes,
		Duration: uploaded.Duration,
	})
}
