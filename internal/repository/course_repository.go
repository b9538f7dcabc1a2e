package repository

import (
	"course_platform_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	return &course, err
}

// FindBySlug 按 slug 查询课程，课时按 order 升序并带附件
func (r *CourseRepository) FindBySlug(slug string) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("lessons.`order` ASC").Preload("Materials")
		}).
		Where("slug = ?", slug).
		First(&course).Error
	return &course, err
}

// FindBySlugOnly 仅查询课程本体，不预加载课时
func (r *CourseRepository) FindBySlugOnly(slug string) (*model.Course, error) {
	var course model.Course
	err := r.DB.Where("slug = ?", slug).First(&course).Error
	return &course, err
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

// SlugExists 检查 slug 是否被占用。软删除的课程仍占用唯一索引，
// 因此这里用 Unscoped 连同已删除记录一起检查
func (r *CourseRepository) SlugExists(slug string, excludeID uint) (bool, error) {
	var count int64
	query := r.DB.Unscoped().Model(&model.Course{}).Where("slug = ?", slug)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count > 0, err
}

type CourseFilter struct {
	Search             string
	Level              string
	Status             string
	IncludeUnpublished bool
}

// List 分页查询课程列表
func (r *CourseRepository) List(page, limit int, filter CourseFilter) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	query := r.DB.Model(&model.Course{})
	if !filter.IncludeUnpublished {
		query = query.Where("status = ?", model.CoursePublished)
	} else if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("title LIKE ?", "%"+filter.Search+"%")
	}
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&courses).Error
	return courses, total, err
}
