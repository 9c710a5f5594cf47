package infrastructure

import "context"

// MessagePublisher отправляет события об отзывах во внешнюю шину (Kafka)
// Когда Kafka выключена в конфигурации, сервис получает nil и события не отправляются
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}
