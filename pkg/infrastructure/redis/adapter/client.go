package adapter

import (
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr          string
	Password      string
	DB            int
	ConsumerGroup string
	Consumer      string
}

func NewRedisClient(cfg Config) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
