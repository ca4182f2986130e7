package convo

import (
	"fmt"
	"strings"

	"natillera-bot/internal/receipt"
	"natillera-bot/internal/repo"
	"natillera-bot/internal/session"
)

const (
	msgApology = "Lo sentimos, tuvimos un problema procesando tu mensaje. " +
		"Por favor intenta de nuevo o contacta al administrador."

	msgHelp = "Hola 👋 Soy el asistente de la natillera.\n" +
		"Envía la foto de tu comprobante de pago para registrarlo, " +
		"o escribe *menu* para ver las opciones."

	msgPINPrompt = "Por seguridad, escribe tu PIN de 4 dígitos para continuar."

	msgLockedOut = "Tu acceso quedó bloqueado por intentos fallidos. " +
		"Contacta al administrador para desbloquearlo."

	msgCancelled = "Listo, cancelamos la operación. No se registró ningún pago."

	msgNothingToCancel = "No hay ninguna operación en curso."

	msgNoAmount = "Recibimos tu comprobante pero no pudimos leer el monto. " +
		"Por favor envía una foto más clara del comprobante."

	msgSessionSaveFailed = "No pudimos guardar tu solicitud en este momento. " +
		"Por favor envía el comprobante de nuevo."
)

func msgPINRetry(remaining int) string {
	if remaining == 1 {
		return "PIN incorrecto. Te queda 1 intento."
	}
	return fmt.Sprintf("PIN incorrecto. Te quedan %d intentos.", remaining)
}

func msgMenu(role string) string {
	var b strings.Builder
	b.WriteString("¿Qué deseas hacer? Responde con el número:\n")
	b.WriteString("1. Estado de mi cuenta\n")
	b.WriteString("2. Mi número de rifa\n")
	if role == "admin" {
		b.WriteString("3. Reporte de pagos pendientes\n")
	}
	b.WriteString("\nEscribe CANCELAR para salir.")
	return b.String()
}

func msgIdentifyPrompt(amount int64) string {
	return fmt.Sprintf(
		"Recibimos un comprobante por %s pero no reconocemos este número de teléfono.\n"+
			"Respóndenos con tu número de rifa (por ejemplo: rifa 5), "+
			"o con el celular registrado del socio (10 dígitos).\n"+
			"Escribe CANCELAR para descartar el comprobante.",
		receipt.FormatCOP(amount))
}

func msgIdentifyRetry() string {
	return "No encontramos un socio con ese dato. " +
		"Envía el número de rifa (por ejemplo: rifa 5) o el celular registrado, " +
		"o escribe CANCELAR."
}

func msgSponsorPrompt(detected int64, candidates []session.SponsorCandidate) string {
	if len(candidates) == 1 {
		c := candidates[0]
		return fmt.Sprintf(
			"El valor %s coincide con la cuota de %s (rifa %d), a quien patrocinas.\n"+
				"¿El pago es para esa persona? Responde SI o NO.",
			receipt.FormatCOP(detected), c.Name, c.RaffleNumber)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "El valor %s coincide con la cuota de varios socios que patrocinas:\n",
		receipt.FormatCOP(detected))
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (rifa %d)\n", i+1, c.Name, c.RaffleNumber)
	}
	b.WriteString("Responde con el número del socio, o NO si el pago es para ti.")
	return b.String()
}

func msgSponsorRetry(candidates []session.SponsorCandidate) string {
	if len(candidates) == 1 {
		return "No entendí tu respuesta. Responde SI, NO o CANCELAR."
	}
	return fmt.Sprintf("No entendí tu respuesta. Responde con un número entre 1 y %d, NO o CANCELAR.",
		len(candidates))
}

func msgPaymentCreated(partner *repo.Partner, payment *repo.Payment, issues []string) string {
	if payment.Status == repo.PaymentStatusVerified {
		return fmt.Sprintf(
			"✅ Pago de %s registrado y verificado para %s (período %02d/%d). ¡Gracias!",
			receipt.FormatCOP(payment.Amount), partner.Name, payment.Month, payment.Year)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Registramos tu pago de %s para %s (período %02d/%d), "+
		"pero quedó pendiente de revisión:\n",
		receipt.FormatCOP(payment.Amount), partner.Name, payment.Month, payment.Year)
	for _, issue := range issues {
		b.WriteString("• ")
		b.WriteString(issue)
		b.WriteString("\n")
	}
	b.WriteString("Un administrador lo revisará pronto.")
	return strings.TrimSpace(b.String())
}

func msgPaymentAccumulated(partner *repo.Partner, payment *repo.Payment) string {
	shortfall := payment.ExpectedAmount - payment.Amount
	if shortfall > 0 {
		return fmt.Sprintf(
			"Sumamos tu abono. %s lleva %s de %s este mes; faltan %s. "+
				"El pago queda pendiente de verificación.",
			partner.Name, receipt.FormatCOP(payment.Amount),
			receipt.FormatCOP(payment.ExpectedAmount), receipt.FormatCOP(shortfall))
	}
	return fmt.Sprintf(
		"Sumamos tu abono. %s completó la cuota de %s este mes. "+
			"El pago queda pendiente de verificación.",
		partner.Name, receipt.FormatCOP(payment.ExpectedAmount))
}

func msgAlreadyPaid(partner *repo.Partner, month, year int) string {
	return fmt.Sprintf("Ya registramos el pago completo de %s para %02d/%d. "+
		"Si crees que es un error, contacta al administrador.",
		partner.Name, month, year)
}

func msgExcessLeftover(leftover int64, eligible []repo.Partner) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Quedó un excedente de %s sin asignar.", receipt.FormatCOP(leftover))
	if len(eligible) > 0 {
		b.WriteString(" Puedes asignarlo a:\n")
		for _, p := range eligible {
			fmt.Fprintf(&b, "• %s (rifa %d, cuota %s)\n", p.Name, p.RaffleNumber, receipt.FormatCOP(p.MonthlyFee))
		}
		b.WriteString("Envía otro comprobante o contacta al administrador para aplicarlo.")
	} else {
		b.WriteString(" Contacta al administrador para aplicarlo.")
	}
	return strings.TrimSpace(b.String())
}

func msgAccountStatus(partner *repo.Partner, payment *repo.Payment, month, year int) string {
	if payment == nil {
		return fmt.Sprintf("%s: no registramos pagos para %02d/%d. Tu cuota es %s.",
			partner.Name, month, year, receipt.FormatCOP(partner.MonthlyFee))
	}
	return fmt.Sprintf("%s: pago de %s para %02d/%d, estado: %s.",
		partner.Name, receipt.FormatCOP(payment.Amount), month, year,
		statusSpanish(payment.Status))
}

func msgPendingReport(pending []repo.PendingPayment) string {
	if len(pending) == 0 {
		return "No hay pagos pendientes de verificación. 🎉"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pagos pendientes (%d):\n", len(pending))
	for _, p := range pending {
		fmt.Fprintf(&b, "• %s — %s de %s (%02d/%d)\n",
			p.PartnerName, receipt.FormatCOP(p.Amount), receipt.FormatCOP(p.Expected), p.Month, p.Year)
	}
	return strings.TrimSpace(b.String())
}

func statusSpanish(status string) string {
	switch status {
	case repo.PaymentStatusVerified:
		return "verificado"
	case repo.PaymentStatusPending:
		return "pendiente de verificación"
	case repo.PaymentStatusRejected:
		return "rechazado"
	}
	return status
}
