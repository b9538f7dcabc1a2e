package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"course_platform_backend/internal/repository"
	"course_platform_backend/internal/util"
	"course_platform_backend/pkg/logger"
	"course_platform_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContentService 处理课程封面、课时视频与附件的上传。
// 视频落盘后用 ffmpeg 探测时长并回写到课时（触发课程统计重算），
// 分块上传的进度记在 Redis 里
type ContentService struct {
	MaterialRepo   *repository.MaterialRepository
	LessonRepo     *repository.LessonRepository
	CourseRepo     *repository.CourseRepository
	Lessons        *LessonService
	Courses        *CourseService
	StorageService *StorageService
	Cfg            *config.Config
	Redis          *redis.Client
}

func NewContentService(
	materialRepo *repository.MaterialRepository,
	lessonRepo *repository.LessonRepository,
	courseRepo *repository.CourseRepository,
	lessons *LessonService,
	courses *CourseService,
	storageService *StorageService,
	cfg *config.Config,
	rdb *redis.Client,
) *ContentService {
	return &ContentService{
		MaterialRepo:   materialRepo,
		LessonRepo:     lessonRepo,
		CourseRepo:     courseRepo,
		Lessons:        lessons,
		Courses:        courses,
		StorageService: storageService,
		Cfg:            cfg,
		Redis:          rdb,
	}
}

const uploadProgressKeyPrefix = "upload_progress:"

// UploadCover 上传课程封面。仅允许图片，拒绝 SVG，大小不超过 5MB
func (s *ContentService) UploadCover(ctx context.Context, courseID uint, file *multipart.FileHeader) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	// SVG 可携带脚本，禁止作为封面
	if ext == ".svg" {
		return nil, util.ErrInvalidImageExt
	}
	if file.Size > util.MaxCoverSize {
		return nil, util.ErrFileTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// 深度验证 MIME 类型
	if _, err := util.ValidateMimeType(src, []string{util.MimeImage}); err != nil {
		return nil, util.ErrInvalidImageExt
	}
	if seeker, ok := src.(io.Seeker); ok {
		seeker.Seek(0, io.SeekStart)
	}

	filename := "covers/" + time.Now().Format("20060102150405") + "-" +
		util.GenerateRandomString(6) + ext
	url, err := s.StorageService.Upload(ctx, filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	monitoring.UploadBytes.WithLabelValues("cover").Add(float64(file.Size))

	course.CoverURL = url
	if err := s.CourseRepo.Update(course); err != nil {
		return nil, err
	}

	s.Courses.InvalidateCourseCache(course.ID)
	return course, nil
}

// UploadLessonVideo 单次上传课时视频：临时落盘、校验内容、
// 生成缩略图、探测时长，最后回写课时并重算课程统计
func (s *ContentService) UploadLessonVideo(ctx context.Context, lessonID uint, file *multipart.FileHeader) (*model.Lesson, error) {
	if _, err := s.LessonRepo.FindByID(lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !isAllowedVideoExt(ext) {
		return nil, util.ErrInvalidVideoExt
	}

	// 临时保存到本地进行处理
	tempDir := filepath.Join(s.Cfg.Storage.LocalPath, "temp")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, err
	}
	videoPath := filepath.Join(tempDir, fmt.Sprintf("temp_video_%d%s", time.Now().UnixNano(), ext))
	defer os.Remove(videoPath)

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// 深度验证 MIME 类型
	if _, err := util.ValidateMimeType(src, []string{util.MimeVideo, util.MimeOctetStream}); err != nil {
		return nil, util.ErrInvalidVideoExt
	}
	if seeker, ok := src.(io.Seeker); ok {
		seeker.Seek(0, io.SeekStart)
	}

	dst, err := os.Create(videoPath)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, err
	}
	dst.Close()

	videoFilename := "videos/" + time.Now().Format("20060102150405") + "-" +
		strings.ReplaceAll(file.Filename, " ", "-")
	videoURL, err := s.StorageService.UploadFile(ctx, videoFilename, videoPath, file.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	monitoring.UploadBytes.WithLabelValues("video").Add(float64(file.Size))

	thumbnailURL := s.makeThumbnail(ctx, videoPath)
	duration := s.probeDuration(videoPath)

	return s.Lessons.SetVideo(lessonID, videoURL, thumbnailURL, duration)
}

// InitChunkedUpload 初始化分块上传，生成与课时绑定的上传标识
func (s *ContentService) InitChunkedUpload(ctx context.Context, lessonID uint, filename string, totalChunks int) (*model.UploadProgress, error) {
	if totalChunks < 1 {
		return nil, util.ErrInvalidChunk
	}
	if _, err := s.LessonRepo.FindByID(lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !isAllowedVideoExt(ext) {
		return nil, util.ErrInvalidVideoExt
	}

	progress := &model.UploadProgress{
		Identifier:  model.GenerateUUID(),
		LessonID:    lessonID,
		Filename:    filename,
		TotalChunks: totalChunks,
		CreatedAt:   time.Now(),
		Chunks:      make(map[int]bool),
	}
	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// UploadVideoChunk 保存一个分块。当所有分块到位时合并文件、上传、
// 探测时长并回写课时，清理临时目录与 Redis 进度。
// 合并完成时第二个返回值为更新后的课时，否则为 nil
func (s *ContentService) UploadVideoChunk(ctx context.Context, identifier string, chunkNumber int, chunkFile *multipart.FileHeader) (*model.UploadProgress, *model.Lesson, error) {
	progress, err := s.GetUploadProgress(identifier)
	if err != nil {
		return nil, nil, err
	}
	if chunkNumber < 1 || chunkNumber > progress.TotalChunks {
		return nil, nil, util.ErrInvalidChunk
	}

	tempDir := filepath.Join(s.Cfg.Storage.LocalPath, "temp", identifier)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, nil, err
	}

	chunkPath := filepath.Join(tempDir, fmt.Sprintf("chunk_%d", chunkNumber))
	src, err := chunkFile.Open()
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	dst, err := os.Create(chunkPath)
	if err != nil {
		return nil, nil, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return nil, nil, err
	}
	dst.Close() // 写入完成后立即关闭，不要等 defer，防止win文件锁问题

	if !progress.Chunks[chunkNumber] {
		progress.UploadedChunks++
		progress.FileSize += chunkFile.Size
		progress.Chunks[chunkNumber] = true
	}
	if err := s.saveProgress(ctx, progress); err != nil {
		return nil, nil, err
	}

	if progress.UploadedChunks < progress.TotalChunks {
		return progress, nil, nil
	}

	lesson, err := s.assembleChunkedVideo(ctx, progress, tempDir)
	if err != nil {
		return nil, nil, err
	}
	return progress, lesson, nil
}

func (s *ContentService) assembleChunkedVideo(ctx context.Context, progress *model.UploadProgress, tempDir string) (*model.Lesson, error) {
	ext := strings.ToLower(filepath.Ext(progress.Filename))
	finalPath := filepath.Join(s.Cfg.Storage.LocalPath, "temp", progress.Identifier+"_final"+ext)

	finalFile, err := os.Create(finalPath)
	if err != nil {
		return nil, err
	}
	for i := 1; i <= progress.TotalChunks; i++ {
		data, err := os.ReadFile(filepath.Join(tempDir, fmt.Sprintf("chunk_%d", i)))
		if err != nil {
			finalFile.Close()
			return nil, err
		}
		if _, err := finalFile.Write(data); err != nil {
			finalFile.Close()
			return nil, err
		}
	}
	finalFile.Close()

	defer func() {
		os.RemoveAll(tempDir)
		os.Remove(finalPath)
		s.Redis.Del(context.Background(), uploadProgressKeyPrefix+progress.Identifier)
	}()

	videoFilename := "videos/" + time.Now().Format("20060102150405") + "-" +
		strings.ReplaceAll(progress.Filename, " ", "-")
	videoURL, err := s.StorageService.UploadFile(ctx, videoFilename, finalPath, "video/"+strings.TrimPrefix(ext, "."))
	if err != nil {
		return nil, err
	}
	monitoring.UploadBytes.WithLabelValues("video").Add(float64(progress.FileSize))

	thumbnailURL := s.makeThumbnail(ctx, finalPath)
	duration := s.probeDuration(finalPath)

	lesson, err := s.Lessons.SetVideo(progress.LessonID, videoURL, thumbnailURL, duration)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("chunked video assembled",
		zap.String("identifier", progress.Identifier),
		zap.Uint("lesson_id", progress.LessonID),
		zap.Int64("size", progress.FileSize),
		zap.Float64("duration", duration))
	return lesson, nil
}

func (s *ContentService) GetUploadProgress(identifier string) (*model.UploadProgress, error) {
	val, err := s.Redis.Get(context.Background(), uploadProgressKeyPrefix+identifier).Result()
	if err == redis.Nil {
		return nil, util.ErrUploadNotFound
	} else if err != nil {
		return nil, err
	}

	var progress model.UploadProgress
	if err := json.Unmarshal([]byte(val), &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (s *ContentService) saveProgress(ctx context.Context, progress *model.UploadProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	// 24小时过期，为中断的上传兜底
	return s.Redis.Set(ctx, uploadProgressKeyPrefix+progress.Identifier, data, 24*time.Hour).Err()
}

// AddMaterial 上传课时附件并登记
func (s *ContentService) AddMaterial(ctx context.Context, lessonID uint, title string, file *multipart.FileHeader) (*model.Material, error) {
	if _, err := s.LessonRepo.FindByID(lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	allowedTypes := []string{util.MimePDF, util.MimeImage, "text/plain", util.MimeOctetStream,
		"application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/zip"}
	if _, err := util.ValidateMimeType(src, allowedTypes); err != nil {
		return nil, fmt.Errorf("非法的文件内容: %v", err)
	}
	if seeker, ok := src.(io.Seeker); ok {
		seeker.Seek(0, io.SeekStart)
	}

	ext := filepath.Ext(file.Filename)
	filename := "materials/" + time.Now().Format("20060102150405") + "_" +
		util.GenerateRandomString(6) + ext
	url, err := s.StorageService.Upload(ctx, filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	monitoring.UploadBytes.WithLabelValues("material").Add(float64(file.Size))

	if title == "" {
		title = file.Filename
	}
	material := &model.Material{
		LessonID: lessonID,
		Title:    title,
		URL:      url,
		Size:     file.Size,
		Format:   strings.TrimPrefix(strings.ToLower(ext), "."),
	}
	if err := s.MaterialRepo.Create(material); err != nil {
		return nil, err
	}

	s.invalidateLessonCourseCache(lessonID)
	return material, nil
}

func (s *ContentService) ListMaterials(lessonID uint) ([]model.Material, error) {
	if _, err := s.LessonRepo.FindByID(lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrLessonNotFound
		}
		return nil, err
	}
	return s.MaterialRepo.ListByLesson(lessonID)
}

// DeleteMaterial 删除附件记录，存储对象的清理尽力而为
func (s *ContentService) DeleteMaterial(ctx context.Context, materialID uint) error {
	material, err := s.MaterialRepo.FindByID(materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrMaterialNotFound
		}
		return err
	}

	if err := s.MaterialRepo.Delete(material.ID); err != nil {
		return err
	}

	if idx := strings.Index(material.URL, "materials/"); idx >= 0 {
		if err := s.StorageService.Delete(ctx, material.URL[idx:]); err != nil {
			logger.Log.Warn("failed to delete material object",
				zap.String("url", material.URL), zap.Error(err))
		}
	}

	s.invalidateLessonCourseCache(material.LessonID)
	return nil
}

func (s *ContentService) invalidateLessonCourseCache(lessonID uint) {
	lesson, err := s.LessonRepo.FindByID(lessonID)
	if err != nil {
		return
	}
	s.Courses.InvalidateCourseCache(lesson.CourseID)
}

// makeThumbnail 从视频第 3 秒抓帧并上传，失败时退回默认缩略图
func (s *ContentService) makeThumbnail(ctx context.Context, videoPath string) string {
	thumbnailFilename := "thumbnails/" + time.Now().Format("20060102150405") + "-" +
		util.GenerateRandomString(6) + ".jpg"
	thumbnailDir := filepath.Join(s.Cfg.Storage.LocalPath, "thumbnails")
	if err := os.MkdirAll(thumbnailDir, 0755); err != nil {
		logger.Log.Error("创建缩略图目录失败", zap.Error(err))
		return s.StorageService.GetURL("thumbnails/default-video-thumbnail.jpg")
	}
	thumbnailPath := filepath.Join(thumbnailDir, filepath.Base(thumbnailFilename))
	defer os.Remove(thumbnailPath)

	if err := util.GenerateThumbnail(videoPath, thumbnailPath, "3"); err != nil {
		logger.Log.Error("生成缩略图失败", zap.Error(err))
		return s.StorageService.GetURL("thumbnails/default-video-thumbnail.jpg")
	}

	url, err := s.StorageService.UploadFile(ctx, thumbnailFilename, thumbnailPath, "image/jpeg")
	if err != nil {
		return s.StorageService.GetURL("thumbnails/default-video-thumbnail.jpg")
	}
	return url
}

// probeDuration 探测视频时长，失败时记 0 并告警，由管理员手工补录
func (s *ContentService) probeDuration(videoPath string) float64 {
	info, err := util.GetVideoInfo(videoPath)
	if err != nil {
		logger.Log.Warn("video probe failed, duration left at 0", zap.Error(err))
		return 0
	}
	return info.Duration
}

func isAllowedVideoExt(ext string) bool {
	for _, e := range util.AllowedVideoExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
