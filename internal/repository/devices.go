package repository

import (
	"context"
	"iotd/internal/models"

	"gorm.io/gorm"
)

type deviceRepo struct {
	db *gorm.DB
}

func (r *deviceRepo) FindByID(ctx context.Context, id int64) (*models.Device, error) {
	var d models.Device
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *deviceRepo) FindAll(ctx context.Context) ([]models.Device, error) {
	var out []models.Device
	err := r.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (r *deviceRepo) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Device, error) {
	out := make(map[int64]models.Device, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Device
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, d := range rows {
		out[d.ID] = d
	}
	return out, nil
}

func (r *deviceRepo) Create(ctx context.Context, d *models.Device) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *deviceRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Device{}).Count(&n).Error
	return n, err
}
