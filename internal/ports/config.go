package ports

import "github.com/gabrielcapilla/playerwrap/internal/domain"

type ConfigService interface {
	Load() (domain.Config, error)
}
