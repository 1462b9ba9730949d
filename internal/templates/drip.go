package templates

// Keys of the built-in drip templates.
const (
	WelcomeRegistration = "welcome_registration"
	GettingStartedTips  = "getting_started_tips"
	CheckIn             = "check_in"
	CampaignReminder    = "campaign_reminder"
)

const htmlLayoutStart = `<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif; color: #1f2937; line-height: 1.5;">
<div style="max-width: 560px; margin: 0 auto; padding: 24px;">
`

const htmlLayoutEnd = `<p style="margin-top: 32px; color: #6b7280; font-size: 12px;">
You are receiving this because you signed up for {{ app_name | escape }}.
</p>
</div></body></html>`

func init() {
	register(WelcomeRegistration,
		`Welcome to {{ app_name }}, {{ name | default: "there" }}!`,
		htmlLayoutStart+`<h1 style="font-size: 20px;">Hi {{ name | default: "there" | escape }},</h1>
<p>Thanks for joining {{ app_name | escape }}. Your account is ready and your first
five company searches are on us.</p>
<p><a href="{{ app_url }}/app" style="color: #2563eb;">Run your first search</a></p>
`+htmlLayoutEnd,
		`Hi {{ name | default: "there" }},

Thanks for joining {{ app_name }}. Your account is ready and your first five
company searches are on us.

Run your first search: {{ app_url }}/app
`)

	register(GettingStartedTips,
		`3 ways to find better leads with {{ app_name }}`,
		htmlLayoutStart+`<p>Hi {{ name | default: "there" | escape }},</p>
<p>A few things that help new users get replies faster:</p>
<ol>
<li>Describe your ideal customer in one sentence, then let search fill the list.</li>
<li>Open the contact panel to pick the decision maker before writing.</li>
<li>Keep the first email under 120 words and ask one question.</li>
</ol>
{% if industry %}<p>Teams in {{ industry | escape }} usually start with a list of 20 companies.</p>{% endif %}
<p><a href="{{ app_url }}/app" style="color: #2563eb;">Open {{ app_name | escape }}</a></p>
`+htmlLayoutEnd,
		`Hi {{ name | default: "there" }},

A few things that help new users get replies faster:

1. Describe your ideal customer in one sentence, then let search fill the list.
2. Open the contact panel to pick the decision maker before writing.
3. Keep the first email under 120 words and ask one question.
{% if industry %}
Teams in {{ industry }} usually start with a list of 20 companies.
{% endif %}
Open {{ app_name }}: {{ app_url }}/app
`)

	register(CheckIn,
		`How is your outreach going, {{ name | default: "there" }}?`,
		htmlLayoutStart+`<p>Hi {{ name | default: "there" | escape }},</p>
<p>It has been a few days since you joined. Did you find the companies you were
looking for? Just reply to this email, a real person reads every answer.</p>
`+htmlLayoutEnd,
		`Hi {{ name | default: "there" }},

It has been a few days since you joined. Did you find the companies you were
looking for? Just reply to this email, a real person reads every answer.
`)

	register(CampaignReminder,
		`Your campaign {{ campaign_name | default: "draft" }} is waiting`,
		htmlLayoutStart+`<p>Hi {{ name | default: "there" | escape }},</p>
<p>Your campaign <strong>{{ campaign_name | default: "draft" | escape }}</strong> has not been
started yet. Review the recipients and press start when you are ready.</p>
<p><a href="{{ app_url }}/campaigns" style="color: #2563eb;">Review campaign</a></p>
`+htmlLayoutEnd,
		`Hi {{ name | default: "there" }},

Your campaign "{{ campaign_name | default: "draft" }}" has not been started yet.
Review the recipients and press start when you are ready.

Review campaign: {{ app_url }}/campaigns
`)
}
