package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config contiene la configuración del servidor leída del entorno
type Config struct {
	ServerPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	SMTPHost      string
	SMTPPort      string
	SMTPUser      string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string

	// AppKey es la clave secreta con la que se firman los hashes de acceso.
	// Rotarla invalida de inmediato todos los enlaces emitidos: tratarlo como
	// un cambio incompatible que exige reemitir los enlaces pendientes.
	AppKey string

	// BaseURL es la raíz pública de las URLs de acceso enviadas por correo
	BaseURL string
}

// LoadConfig carga la configuración desde variables de entorno, con un
// .env opcional para desarrollo local
func LoadConfig() (*Config, error) {
	// Ignorar error: en producción no hay archivo .env
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "encuestas"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPFromName:  getEnv("SMTP_FROM_NAME", "Plataforma de Encuestas"),
		SMTPFromEmail: getEnv("SMTP_FROM_EMAIL", ""),

		AppKey:  os.Getenv("APP_KEY"),
		BaseURL: getEnv("BASE_URL", "http://localhost:3000"),
	}

	if cfg.AppKey == "" {
		return nil, fmt.Errorf("APP_KEY es requerida: es la clave de firma de los enlaces de acceso")
	}

	return cfg, nil
}

// GetDBConnString construye la cadena de conexión de Postgres
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// getEnv obtiene una variable de entorno con un valor por defecto
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
