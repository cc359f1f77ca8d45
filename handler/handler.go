package handler

import (
	"context"
	"log/slog"
	"os"

	"github.com/pyama86/YARO/domain/repository"
	"github.com/pyama86/YARO/engine"
	"github.com/slack-go/slack"
)

func Handle(ctx context.Context, configPath string) error {
	cfgRepository, err := repository.NewConfigRepository(configPath)
	if err != nil {
		return err
	}

	dynamoRepository, err := repository.NewDynamoDBRepository()
	if err != nil {
		return err
	}
	repo := repository.NewRepository(dynamoRepository)

	awxRepository := repository.NewAWXRepository(
		os.Getenv("AWX_URL"),
		os.Getenv("AWX_TOKEN"),
		cfgRepository.Policy.DispatchRetries,
	)
	if err := awxRepository.Ping(ctx); err != nil {
		slog.Warn("Automation runner is not reachable", slog.Any("error", err))
	}

	var tickets repository.TicketSystem
	var snowRepository *repository.ServiceNowRepository
	if os.Getenv("SNOW_URL") != "" && os.Getenv("SNOW_USER") != "" {
		snowRepository = repository.NewServiceNowRepository(
			os.Getenv("SNOW_URL"),
			os.Getenv("SNOW_USER"),
			os.Getenv("SNOW_PASS"),
			cfgRepository.ServiceNow.AssignmentGroup,
		)
		tickets = snowRepository
	}

	var slackRepository repository.SlackRepositoryer
	if os.Getenv("SLACK_BOT_TOKEN") != "" && cfgRepository.Slack.AlertChannel != "" {
		slackRepository = repository.NewSlackRepository(
			slack.New(os.Getenv("SLACK_BOT_TOKEN")),
		)
	}

	aiRepository, err := repository.NewAIRepository()
	if err != nil {
		return err
	}

	var exporter repository.ReportExporter
	if os.Getenv("CONFLUENCE_USERNAME") != "" && os.Getenv("CONFLUENCE_PASSWORD") != "" && cfgRepository.Confluence.Domain != "" {
		r, err := repository.NewConfluenceRepository(
			cfgRepository.Confluence.Domain,
			os.Getenv("CONFLUENCE_USERNAME"),
			os.Getenv("CONFLUENCE_PASSWORD"),
			cfgRepository.Confluence.Space,
			cfgRepository.Confluence.AncestorID,
		)
		if err != nil {
			return err
		}
		exporter = r
	}

	playbooks, err := cfgRepository.Playbooks(ctx)
	if err != nil {
		return err
	}
	catalog := engine.NewCatalog(playbooks)
	if templates, err := awxRepository.ListJobTemplates(ctx); err != nil {
		slog.Warn("Failed to list runner job templates", slog.Any("error", err))
	} else if missing := catalog.MissingTemplates(templates); len(missing) > 0 {
		slog.Warn("Configured playbooks are missing from the runner catalog",
			slog.Any("playbook_ids", missing))
	}

	classifier := engine.NewRuleClassifier(cfgRepository.ClassifierRules(ctx))
	dispatcher := engine.NewDispatcher(
		awxRepository,
		repo,
		cfgRepository.Runner.PollInterval(),
		cfgRepository.Runner.JobTimeout(),
	)

	var ai repository.AIRepositorier
	if aiRepository != nil {
		ai = aiRepository
	}
	recorder := engine.NewClosureRecorder(
		repo,
		tickets,
		slackRepository,
		ai,
		exporter,
		cfgRepository.Slack.AlertChannel,
	)

	remediation := engine.New(
		repo,
		catalog,
		cfgRepository,
		classifier,
		dispatcher,
		recorder,
		cfgRepository.Runner.ValidationTimeout(),
	)

	if snowRepository != nil {
		scheduler := NewScheduler(
			snowRepository,
			remediation,
			cfgRepository.ServiceNow,
		)
		go scheduler.Run(ctx)
	}

	return NewAPIServer(remediation, cfgRepository.API.Address).Run(ctx)
}
