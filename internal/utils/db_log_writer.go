package utils

import (
	"strings"
	"sync"

	"gorm.io/gorm"

	"mediagrab/internal/models"
)

// DBLogWriter streams delivery progress into the deliveries table so
// the admin UI can show it while the job is still running.
type DBLogWriter struct {
	db         *gorm.DB
	deliveryID uint
	buffer     strings.Builder
	mutex      sync.Mutex
}

func NewDBLogWriter(db *gorm.DB, deliveryID uint) *DBLogWriter {
	return &DBLogWriter{
		db:         db,
		deliveryID: deliveryID,
	}
}

func (w *DBLogWriter) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err = w.buffer.Write(p)
	if err != nil {
		return n, err
	}

	w.db.Model(&models.Delivery{}).Where("id = ?", w.deliveryID).Update("logs", w.buffer.String())

	return n, nil
}

func (w *DBLogWriter) String() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.buffer.String()
}
