package svc

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"swapengine/internal/config"
	"swapengine/internal/model"
	"swapengine/internal/strategy"

	"github.com/ethereum/go-ethereum/ethclient"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ServiceContext struct {
	Config         config.Config
	DB             *gorm.DB
	WalletsDao     model.WalletsDao
	SwapRecordsDao model.SwapRecordsDao
	Registry       *strategy.Registry

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

func NewServiceContext(c config.Config) *ServiceContext {
	db, err := initDB(c.Postgres.DSN)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}

	return &ServiceContext{
		Config:         c,
		DB:             db,
		WalletsDao:     model.NewWalletsDao(db),
		SwapRecordsDao: model.NewSwapRecordsDao(db),
		Registry:       strategy.DefaultRegistry(),
		clients:        make(map[string]*ethclient.Client),
	}
}

// EthClient 按链名复用 RPC 连接
func (s *ServiceContext) EthClient(ctx context.Context, chainName string) (*ethclient.Client, config.ChainConf, error) {
	chainConf, ok := s.Config.Chains[chainName]
	if !ok {
		return nil, chainConf, fmt.Errorf("chain %s is not configured", chainName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[chainName]; ok {
		return client, chainConf, nil
	}
	if s.clients == nil {
		s.clients = make(map[string]*ethclient.Client)
	}

	client, err := ethclient.DialContext(ctx, chainConf.RpcUrl)
	if err != nil {
		return nil, chainConf, fmt.Errorf("failed to connect to %s rpc: %w", chainName, err)
	}
	s.clients[chainName] = client
	return client, chainConf, nil
}

// Close 释放 RPC 连接与数据库连接池
func (s *ServiceContext) Close() {
	s.mu.Lock()
	for name, client := range s.clients {
		client.Close()
		delete(s.clients, name)
	}
	s.mu.Unlock()

	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

func initDB(dsn string) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.SwapRecords{}); err != nil {
		return nil, fmt.Errorf("failed to migrate swap_records: %w", err)
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	return db, nil
}
