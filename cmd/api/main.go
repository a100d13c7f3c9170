package main

import (
	"context"
	"os"
	"path"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/database/postgres"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/meta/metaclient"
	"github.com/vfg2006/ad-publisher-api/infrastructure/repository"
	"github.com/vfg2006/ad-publisher-api/internal/api"
	"github.com/vfg2006/ad-publisher-api/internal/config"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"github.com/vfg2006/ad-publisher-api/internal/scheduler"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/insighting"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/predicting"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/publishing"
)

func main() {
	// Inicializa configuração de logs
	configureLogger()

	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	// Define o nível de log com base na configuração
	logLevel, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		logrus.Warnf("Nível de log inválido: %s, usando 'info'", cfg.App.LogLevel)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
	logrus.Infof("Nível de log configurado para: %s", logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgConn := pgconn(ctx, cfg.Database)
	defer pgConn.Close()

	jobRepo := repository.NewPublishJobRepository(pgConn)
	insightRepo := repository.NewInsightRecordRepository(pgConn)
	watchedRepo := repository.NewWatchedEntityRepository(pgConn)

	clients := buildClientRegistry(cfg)

	// Workflow engine e serviço de publicação
	publisherEngine := publishing.NewEngine(jobRepo, watchedRepo, clients, cfg)
	publishService := publishing.NewService(jobRepo, clients, publisherEngine)

	// Leitura de insights e vínculo com o serviço de predição
	insightService := insighting.NewService(insightRepo, watchedRepo)
	predictionLinker := predicting.NewLinker(cfg)

	// Agendador de sincronização de insights
	insightSyncService := scheduler.NewInsightSyncService(
		watchedRepo,
		insightRepo,
		jobRepo,
		clients,
		predictionLinker,
		cfg,
	)

	// Inicia o workflow engine e o agendador em background
	if err := publisherEngine.Start(ctx); err != nil {
		logrus.WithError(err).Error("Erro ao iniciar o workflow engine de publicação")
	} else {
		logrus.Info("Workflow engine de publicação iniciado com sucesso")
	}

	if err := insightSyncService.Start(ctx); err != nil {
		logrus.WithError(err).Error("Erro ao iniciar o agendador de sincronização de insights")
	} else {
		logrus.Info("Agendador de sincronização de insights iniciado com sucesso")
	}

	server, err := api.New(
		cfg,
		publishService,
		insightService,
		insightSyncService,
		publisherEngine,
	)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := server.Run(ctx); err != nil {
		logrus.Error(err)
	}
}

// buildClientRegistry monta o registry de plataformas configuradas. Sem
// credenciais (ou em dry-run explícito) a plataforma recebe o client simulado,
// que executa o mesmo workflow com IDs sintéticos.
func buildClientRegistry(cfg *config.Config) adplatform.Registry {
	clients := adplatform.Registry{}

	if cfg.Meta.DryRun || cfg.Meta.AccessToken == "" || cfg.Meta.AdAccountID == "" {
		logrus.Info("Client do Meta em modo dry-run (sem credenciais ou dry-run habilitado)")
		clients[domain.PlatformMeta] = adplatform.NewNullClient(domain.PlatformMeta)
	} else {
		clients[domain.PlatformMeta] = metaclient.NewClient(cfg)
	}

	return clients
}

// configureLogger configura o formato e comportamento dos logs
func configureLogger() {
	_, file, _, _ := runtime.Caller(0)
	dir := path.Dir(file)
	os.Chdir(dir)

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

// pgconn cria uma conexão com o banco de dados
func pgconn(ctx context.Context, dbConfig config.Database) *postgres.Connection {
	conn, err := postgres.NewConnection(ctx, dbConfig)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao conectar ao PostgreSQL")
	}

	err = conn.Ping(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("Erro ao testar conexão com PostgreSQL")
	}

	logrus.Info("Conexão com PostgreSQL estabelecida com sucesso")
	return conn
}
