package repository

import (
	"context"
	"iotd/internal/models"

	"gorm.io/gorm"
)

type commandRepo struct {
	db *gorm.DB
}

func (r *commandRepo) Save(ctx context.Context, c *models.Command) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *commandRepo) FindByID(ctx context.Context, id int64) (*models.Command, error) {
	var c models.Command
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *commandRepo) FindByDevice(ctx context.Context, deviceID int64) ([]models.Command, error) {
	var out []models.Command
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&out).Error
	return out, err
}
