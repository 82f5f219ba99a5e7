// Package ui собирает клавиатуры и тексты сообщений бота.
package ui

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Moshfiqmoon/Championyourpicks/internal/models"
)

// Данные callback-кнопок.
const (
	CallbackSubWeekly       = "sub_weekly"
	CallbackSubBiweekly     = "sub_biweekly"
	CallbackPicks           = "picks"
	CallbackNews            = "news"
	CallbackStatus          = "status"
	CallbackReferral        = "referral"
	CallbackUseReferral     = "use_referral"
	CallbackHelp            = "help"
	CallbackBackToMain      = "back_to_main"
	CallbackAdminBackToMain = "admin_back_to_main"
	CallbackAdminSendPicks  = "admin_sendpicks"
	CallbackAdminViewSubs   = "admin_viewsubs"
	CallbackAdminRemoveSub  = "admin_removesub"
	CallbackAdminActivate   = "admin_activate"
	SportCallbackPrefix     = "sport_"
)

// Тексты сообщений.
const (
	WelcomeText = "🏆 Welcome to Sports Picks Heaven! 🏆\n" +
		"Unlock expert picks for ALL sports - NBA, NFL, MLB, NHL, Tennis & more! 🏀🏈⚾\n" +
		"Join the VIP club and win BIG! 💰"
	AdminWelcomeText       = "👑 Welcome, Admin! Manage your empire:"
	PaymentSuccessText     = "🎉 Payment successful! Your subscription is active. Welcome to the VIP club!"
	PaymentReceivedText    = "✅ Payment received! Your subscription should be active shortly. If not, please contact support."
	PaymentMismatchText    = "❌ Invalid session ID or user mismatch. Please contact support."
	PaymentCancelledText   = "❌ Payment was cancelled. You can try again anytime!"
	SubscribeToUnlockText  = "🔒 Subscribe to unlock premium picks!"
	NoSubscriptionText     = "😔 No active subscription. Join the VIP club now!"
	EnterReferralText      = "🏆 Enter a referral code to use:"
	ReferralAppliedText    = "✅ Referral applied! Check back for bonuses after subscribing!"
	ReferralInvalidText    = "❌ Invalid or unavailable referral code. Try again!"
	ChooseSportText        = "🏟️ Choose your sport for today’s hottest picks:"
	BackToMainText         = "🏆 Back to main menu:"
	BackToAdminText        = "👑 Back to admin menu:"
	HelpText               = "🏆 Sports Picks Heaven 🏆\n" +
		"- Expert picks for ALL sports! 🏀🏈⚾🏒🎾\n" +
		"- Weekly ($50) or Bi-Weekly ($80) VIP plans\n" +
		"- Refer friends for bonuses! 🎁\n" +
		"Let’s win BIG together! 🚀"
	NewsText = "📰 Hot Sports Updates 📰\n" +
		"1. NBA Finals set for June! 🏀\n" +
		"2. NFL Draft rumors buzzing! 🏈\n" +
		"3. MLB season opener announced! ⚾\n" +
		"4. NHL playoffs heating up! 🏒\n" +
		"5. Wimbledon dates confirmed! 🎾\n" +
		"Stay ahead of the game! 🏆"
	EnterPicksText = "📤 Type your picks below (any format, as many lines as you want):\n" +
		"Example:\n" +
		"NBA: Lakers +5.5 (-110)\n" +
		"NFL: Chiefs -3 (-105)\n" +
		"Parlay: Lakers ML + Chiefs -3 (+250)"
	EnterRemovalTargetText = "🗑️ Enter the user ID to remove:"
	EnterActivationText    = "✅ Enter the user ID and days to activate (e.g., '123456789 7' for 7 days):"
	UnauthorizedText       = "🚫 Unauthorized action!"
	TemporaryErrorText     = "❌ Something went wrong on our side. Please try again later."
)

// UserMenu главное меню. Состав зависит от того, действует ли подписка.
func UserMenu(isSubscribed bool) tgbotapi.InlineKeyboardMarkup {
	if isSubscribed {
		return tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🏀 Today’s Hot Picks", CallbackPicks)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📰 Latest Sports Buzz", CallbackNews)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📅 My Subscription", CallbackStatus)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎁 Refer a Friend", CallbackReferral)),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❓ Help & Support", CallbackHelp)),
		)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💸 Weekly VIP ($50)", CallbackSubWeekly)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("💎 Bi-Weekly Elite ($80)", CallbackSubBiweekly)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎁 Use Referral Code", CallbackUseReferral)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❓ Learn More", CallbackHelp)),
	)
}

// AdminMenu меню администратора.
func AdminMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📤 Send Picks", CallbackAdminSendPicks)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("👥 View Subscribers", CallbackAdminViewSubs)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗑️ Remove Subscriber", CallbackAdminRemoveSub)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Manually Activate", CallbackAdminActivate)),
	)
}

// SportsMenu выбор вида спорта.
func SportsMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏀 NBA", SportCallbackPrefix+"nba"),
			tgbotapi.NewInlineKeyboardButtonData("🏈 NFL", SportCallbackPrefix+"nfl"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚾ MLB", SportCallbackPrefix+"mlb"),
			tgbotapi.NewInlineKeyboardButtonData("🏒 NHL", SportCallbackPrefix+"nhl"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎾 Tennis", SportCallbackPrefix+"tennis"),
			tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Menu", CallbackBackToMain),
		),
	)
}

// BackButton кнопка возврата в соответствующее меню.
func BackButton(isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	callback := CallbackBackToMain
	if isAdmin {
		callback = CallbackAdminBackToMain
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Menu", callback)),
	)
}

// PaymentOffer текст и клавиатура предложения оплаты.
func PaymentOffer(plan models.Plan, checkoutURL string) (string, tgbotapi.InlineKeyboardMarkup) {
	price := plan.AmountCents / 100
	text := fmt.Sprintf("💰 Unlock premium sports picks for just $%d/%s! Click below:", price, plan.Name)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(
			fmt.Sprintf("Pay $%d/%s", price, plan.Name), checkoutURL)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🔙 Back to Menu", CallbackBackToMain)),
	)
	return text, markup
}

// FormatStatus текст состояния подписки.
func FormatStatus(user *models.User) string {
	if user == nil || user.PaymentStatus != models.PaymentStatusActive || user.SubscriptionEnd == nil {
		return NoSubscriptionText
	}
	return fmt.Sprintf("📅 Your VIP Status:\nActive until %s\nKeep dominating the bets! 🏆",
		user.SubscriptionEnd.Format("2006-01-02"))
}

// FormatReferralCode текст с реферальным кодом.
func FormatReferralCode(code string) string {
	return fmt.Sprintf("🎁 Your Referral Code: %s\nShare with friends to earn bonuses!", code)
}

// FormatBroadcast оборачивает пики админа в шаблон рассылки.
func FormatBroadcast(picks string, date time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 Sports Picks – %s\n\n%s\n\n", date.Format("2006-01-02"), picks)
	b.WriteString("🔔 Risk Management Tip: Always bet responsibly and manage your bankroll wisely.\n")
	b.WriteString("🚀 Stay ahead. Stay winning!")
	return b.String()
}

// Витринные пики на случай, когда админ ещё не загрузил свежие.
var dailyPicks = struct {
	NBA    []string
	NFL    []string
	MLB    []string
	Parlay string
}{
	NBA:    []string{"Lakers +5.5 (-110)", "Warriors ML (-120)"},
	NFL:    []string{"Chiefs -3 (-105)", "Bills Over 48.5 (-115)"},
	MLB:    []string{"Yankees ML (-130)", "Dodgers -1.5 (+150)"},
	Parlay: "Lakers ML + Chiefs -3 (+250)",
}

// FormatDailyPicks сводка пиков дня для подписчика.
func FormatDailyPicks(date time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 Exclusive Sports Picks – %s\n\n", date.Format("2006-01-02"))
	b.WriteString("🔥 Top Analyst Picks 🔥\n\n")
	b.WriteString("🏀 NBA Picks\n")
	for _, pick := range dailyPicks.NBA {
		fmt.Fprintf(&b, "✅ %s\n", pick)
	}
	b.WriteString("\n🏈 NFL Picks\n")
	for _, pick := range dailyPicks.NFL {
		fmt.Fprintf(&b, "✅ %s\n", pick)
	}
	b.WriteString("\n⚾ MLB Picks\n")
	for _, pick := range dailyPicks.MLB {
		fmt.Fprintf(&b, "✅ %s\n", pick)
	}
	fmt.Fprintf(&b, "\n🎯 Expert Parlay of the Day\n💰 %s\n\n", dailyPicks.Parlay)
	b.WriteString("🔔 Risk Management Tip: Always bet responsibly and manage your bankroll wisely.\n\n")
	b.WriteString("🚀 Stay ahead. Stay winning!")
	return b.String()
}

// FormatSubscribers сводка по всем записям для администратора.
func FormatSubscribers(users []*models.User) string {
	if len(users) == 0 {
		return "👥 No subscribers found."
	}
	var b strings.Builder
	b.WriteString("👥 Subscriber Details:\n")
	for _, u := range users {
		end := "-"
		if u.SubscriptionEnd != nil {
			end = u.SubscriptionEnd.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "ID: %d, End: %s, Status: %s\n", u.UserID, end, u.PaymentStatus)
	}
	return b.String()
}
