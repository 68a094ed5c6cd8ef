package flow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aura-dev/aura/internal/models"
)

// User-visible texts. Conversations are held in Brazilian Portuguese.
const (
	defaultSendMessage   = "Mensagem não configurada"
	defaultOptionsPrompt = "Escolha uma opção:"
	invalidOptionPrefix  = "Opção inválida! Por favor, digite apenas o número da opção:"
	nonNumericOption     = "Por favor, digite apenas o número da opção!"

	defaultSchedulingPrompt = "📅 Escolha um horário disponível:"
	schedulingFooter        = "Digite o número do horário desejado ou \"cancelar\" para cancelar um agendamento existente."
	defaultNoSlots          = "😔 No momento não há horários disponíveis."
	defaultBookingConfirm   = "✅ Agendamento confirmado!\n\n📅 Data: {date}\n🕐 Horário: {time}\n🔑 Código: {code}\n\nGuarde este código caso precise cancelar."
	invalidSlot             = "❌ Opção inválida! Digite o número do horário desejado:"
	bookingFailed           = "❌ Não foi possível concluir o agendamento. Escolha outro horário:"
	askCancelCode           = "🔑 Digite o código de confirmação do agendamento que deseja cancelar:"
	cancelCodeNotFound      = "❌ Código não encontrado. Verifique e digite novamente o código de confirmação:"
	askCancelReason         = "📝 Agendamento encontrado: %s às %s.\n\nPor favor, informe o motivo do cancelamento:"
	cancelReasonTooShort    = "⚠️ Por favor, descreva o motivo com pelo menos 10 caracteres:"
	cancelFailed            = "❌ Não foi possível cancelar o agendamento. Tente novamente mais tarde."
	cancelConfirmed         = "✅ Agendamento cancelado com sucesso!"

	defaultSalePrompt    = "🛒 Confira nossos produtos disponíveis:"
	saleFooter           = "Digite o número do produto desejado."
	saleCustomOption     = "0. Solicitar um produto que não está na lista"
	defaultEmptyStock    = "😔 No momento não temos produtos em estoque.\n\nDigite o nome do produto que você procura e entraremos em contato:"
	askCustomItem        = "📝 Digite o nome do produto que você deseja:"
	invalidSaleItem      = "❌ Opção inválida! Digite o número do produto desejado:"
	saleItemOutOfStock   = "❌ Este produto está sem estoque. Escolha outra opção:"
	askPhone             = "🛒 Produto selecionado: %s\n💰 Valor: %s\n\n📱 Por favor, envie seu número de telefone para contato:"
	askPhoneAgain        = "📱 Por favor, envie um número de telefone para contato:"
	customRequestDone    = "✅ Solicitação registrada!\n\nProduto: %s\nEntraremos em contato até %s."
	purchaseDone         = "✅ Compra confirmada!\n\nProduto: %s\nValor: %s\nRetire seu pedido até %s."
	saleUnavailable      = "❌ Não foi possível acessar nossos produtos no momento. Tente novamente mais tarde."
	saleRegisterFailed   = "❌ Não foi possível registrar seu pedido. Tente novamente mais tarde."
	agentInitFailed      = "❌ Não foi possível iniciar o atendimento com o assistente. Tente novamente mais tarde."
	agentProcessFailed   = "❌ Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente."
	humanHandoffFailed   = "❌ Não foi possível transferir para um atendente no momento. Tente novamente mais tarde."
	defaultHumanHandoff  = "👤 Você será atendido por um de nossos atendentes. Aguarde um momento..."
	defaultSurveyPrompt  = "Como você avalia o nosso atendimento?"
	invalidSurveyRating  = "❌ Por favor, digite um número de 0 a 5:"
	surveySaveFailed     = "❌ Não foi possível registrar sua avaliação. Digite novamente uma nota de 0 a 5:"
	surveyThanks         = "✅ Obrigado pelo seu feedback! Sua avaliação foi registrada."
	genericApology       = "⚠️ Desculpe, ocorreu um erro ao processar sua mensagem. Por favor, tente novamente."
	surveyScale          = "0 - Péssimo\n1 - Muito ruim\n2 - Ruim\n3 - Regular\n4 - Bom\n5 - Excelente"
	surveyInstruction    = "Digite uma nota de 0 a 5:"
	minCancelReasonRunes = 10
)

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func numberedList(labels []string) string {
	lines := make([]string, len(labels))
	for i, l := range labels {
		lines[i] = strconv.Itoa(i+1) + ". " + l
	}
	return strings.Join(lines, "\n")
}

func optionLabels(d *models.OptionsData) []string {
	labels := make([]string, len(d.Options))
	for i, o := range d.Options {
		labels[i] = o.Text
	}
	return labels
}

func renderOptions(d *models.OptionsData) string {
	prompt := orDefault(d.Message, defaultOptionsPrompt)
	if len(d.Options) == 0 {
		return prompt
	}
	return prompt + "\n" + numberedList(optionLabels(d))
}

func renderOptionsError(d *models.OptionsData, numeric bool) string {
	prefix := invalidOptionPrefix
	if !numeric {
		prefix = nonNumericOption
	}
	return prefix + "\n\n" + numberedList(optionLabels(d))
}

// formatDate renders a YYYY-MM-DD date as DD/MM/YYYY, leaving other inputs alone.
func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}

func formatDeadline(t time.Time) string {
	return t.Format("02/01/2006")
}

func slotList(slots []models.TimeSlot) string {
	labels := make([]string, len(slots))
	for i, s := range slots {
		labels[i] = formatDate(s.Date) + " às " + s.Time
	}
	return numberedList(labels)
}

func renderSlots(d *models.SchedulingData, slots []models.TimeSlot) string {
	return orDefault(d.Message, defaultSchedulingPrompt) + "\n\n" + slotList(slots) + "\n\n" + schedulingFooter
}

func renderBookingConfirmation(d *models.SchedulingData, code string, slot models.TimeSlot) string {
	r := strings.NewReplacer("{code}", code, "{time}", slot.Time, "{date}", formatDate(slot.Date))
	return r.Replace(orDefault(d.ConfirmationMessage, defaultBookingConfirm))
}

// formatBRL renders an amount as Brazilian reais, e.g. "R$ 1.234,50".
func formatBRL(v float64) string {
	cents := int64(math.Round(v * 100))
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, b.String(), cents%100)
}

func itemList(items []models.InventoryItem) string {
	labels := make([]string, len(items))
	for i, it := range items {
		stock := "sem estoque"
		if it.StockQuantity > 0 {
			stock = strconv.Itoa(it.StockQuantity) + " em estoque"
		}
		labels[i] = fmt.Sprintf("%s - %s (%s)", it.Name, formatBRL(it.UnitPrice), stock)
	}
	return numberedList(labels) + "\n" + saleCustomOption
}

func renderItems(d *models.SaleData, items []models.InventoryItem) string {
	return orDefault(d.Message, defaultSalePrompt) + "\n\n" + itemList(items) + "\n\n" + saleFooter
}

func renderSurvey(question string) string {
	return "📊 " + question + "\n\n" + surveyScale + "\n\n" + surveyInstruction
}
