package database

import (
	"course_platform_backend/internal/config"
	"course_platform_backend/internal/model"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	if !migrate {
		return db, nil
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Lesson{},
		&model.Material{},
		&model.Enrollment{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	// 首次启动时创建默认超级管理员（报名只能由管理员发起，必须有初始账号）
	var count int64
	db.Model(&model.User{}).Count(&count)
	if count == 0 {
		password := os.Getenv("SUPERADMIN_PASSWORD")
		if password == "" {
			password = "admin123"
			log.Println("SUPERADMIN_PASSWORD not set, seeding with the default password, change it immediately")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		admin := &model.User{
			Name:     "Platform Admin",
			Email:    "admin@platform.local",
			Password: string(hash),
			Role:     model.SuperAdmin,
		}
		if err := db.Create(admin).Error; err != nil {
			return nil, err
		}
		log.Println("Default superadmin created (admin@platform.local)")
	}

	return db, nil
}
