package s3

import "context"

// Storage — узкий интерфейс к S3-совместимому хранилищу. Само хранение
// файлов — внешний сервис; ядру от него нужно только удаление объектов
// вычищенных документов.
type Storage interface {
	DeleteObject(ctx context.Context, key string) error
}
