package blocks

import (
	"fmt"

	"github.com/pyama86/YARO/domain/entity"
	"github.com/slack-go/slack"
)

func Escalation(incident *entity.Incident, reason string) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", "🚨 An incident needs a human. Autonomous remediation was not completed.", false, false),
			[]*slack.TextBlockObject{
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Incident:* %s", incident.Number),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Service:* %s", incident.Service),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Severity:* %s", incident.Severity),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Summary:* %s", incident.ShortDescription),
					false,
					false,
				),
				slack.NewTextBlockObject(
					"mrkdwn",
					fmt.Sprintf("*Reason:* %s", reason),
					false,
					false,
				),
			},
			nil,
		),
	}
}

func Closed(incident *entity.Incident, disposition entity.Disposition, summary string) []slack.Block {
	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(
				"mrkdwn",
				fmt.Sprintf("✅ Incident *%s* closed as *%s*.\n%s", incident.Number, disposition, summary),
				false,
				false,
			),
			nil,
			nil,
		),
	}
}
