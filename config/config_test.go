package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestContextHelpersAndKeyString() {
	ctx := context.Background()
	cfg := ConfigurationDefault{ServiceName: "svc"}

	s.Equal("tenantkit/config/configurationKey", ctxKeyConfiguration.String())

	ctx = ToContext(ctx, cfg)
	fromCtx := FromContext[ConfigurationDefault](ctx)
	s.Equal("svc", fromCtx.ServiceName)

	missing := FromContext[*ConfigurationDefault](context.Background())
	s.Nil(missing)
}

func (s *ConfigSuite) TestFromEnvDefaults() {
	s.T().Setenv("JWT_SECRET", "s3cret")
	s.T().Setenv("DATABASE_URL", "postgres://a:b@localhost:5432/one,postgres://a:b@localhost:5432/two")

	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)

	s.Equal([]byte("s3cret"), cfg.GetJWTSecret())
	s.Equal(24*time.Hour, cfg.GetJWTTTL())
	s.Equal(DefaultTenantHeader, cfg.TenantHeader())
	s.Equal(DefaultUnbindTimeout, cfg.UnbindTimeout())
	s.Equal(10, cfg.DefaultPageLimit())
	s.Equal(100, cfg.MaxPageLimit())
	s.Equal(100, cfg.RateLimitRPS())
	s.Equal(200, cfg.RateLimitBurstSize())
	s.Equal(10, cfg.RateLimitAddressFactor())
	s.Len(cfg.GetDatabasePrimaryHostURL(), 2)
	s.Equal("./migrations/0001", cfg.GetDatabaseMigrationPath())
	s.True(cfg.PreferSimpleProtocol())
	s.True(cfg.SkipDefaultTransaction())
}

func (s *ConfigSuite) TestFillEnv() {
	type envCfg struct {
		Value string `env:"TENANTKIT_TEST_VALUE"`
	}

	s.T().Setenv("TENANTKIT_TEST_VALUE", "abc")

	var target envCfg
	s.Require().NoError(FillEnv(&target))
	s.Equal("abc", target.Value)
}

func (s *ConfigSuite) TestFallbacks() {
	cfg := &ConfigurationDefault{
		TenantHeaderName:              "  ",
		SessionUnbindTimeout:          -1,
		PaginationDefaultLimit:        0,
		PaginationMaxLimit:            3,
		DatabaseSlowQueryLogThreshold: "not-a-duration",
		HTTPServerPort:                "9090",
		LogLevel:                      "trace",
	}

	s.Equal(DefaultTenantHeader, cfg.TenantHeader())
	s.Equal(DefaultUnbindTimeout, cfg.UnbindTimeout())
	s.Equal(10, cfg.DefaultPageLimit())
	s.Equal(10, cfg.MaxPageLimit())
	s.Equal(DefaultSlowQueryThreshold, cfg.GetDatabaseSlowQueryLogThreshold())
	s.Equal(":9090", cfg.HTTPPort())
	s.True(cfg.LoggingLevelIsDebug())
}

func (s *ConfigSuite) TestHTTPPortVariants() {
	testCases := []struct {
		name string
		port string
		want string
	}{
		{name: "numeric", port: "7000", want: ":7000"},
		{name: "colon prefixed", port: ":7001", want: ":7001"},
		{name: "host and port", port: "127.0.0.1:7002", want: "127.0.0.1:7002"},
		{name: "garbage", port: "abc", want: ":8080"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			cfg := &ConfigurationDefault{HTTPServerPort: tc.port}
			s.Equal(tc.want, cfg.HTTPPort())
		})
	}
}
