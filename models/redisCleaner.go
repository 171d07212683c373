package models

import (
	"github.com/mmdatafocus/mkitchen_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list if exists
}

// remove both item & list
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj ProductUnit) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[ProductUnit](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj ProductUnit) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[ProductUnit](obj.BusinessId); err != nil {
		return err
	}
	return nil
}

func (obj ProductCategory) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[ProductCategory](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj ProductCategory) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[ProductCategory](obj.BusinessId); err != nil {
		return err
	}
	return nil
}

func (obj Product) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Product](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Product) RemoveAllRedis() error {
	return nil
}

func (obj Bom) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Bom](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Bom) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[Bom](obj.BusinessId); err != nil {
		return err
	}
	return nil
}
