package notify

import (
	"fmt"
	"net/url"
	"strings"

	"hireflow/pkg/domain"
)

// NormalizePhone converts Indonesian phone numbers to international form
// (08xx becomes 628xx). Returns "" when the number cannot be normalized.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	clean := digits.String()
	switch {
	case clean == "":
		return ""
	case strings.HasPrefix(clean, "0"):
		return "62" + clean[1:]
	case strings.HasPrefix(clean, "62"):
		return clean
	default:
		return ""
	}
}

// WhatsAppLink builds a click-to-chat wa.me URL with a stage-specific
// message template. Nothing is sent; the frontend presents the link.
// Returns "" when the phone number is unusable.
func WhatsAppLink(phone, name string, stage domain.Stage, additionalInfo string) string {
	target := NormalizePhone(phone)
	if target == "" {
		return ""
	}
	msg := stageMessage(name, stage, additionalInfo)
	return fmt.Sprintf("https://wa.me/%s?text=%s", target, url.QueryEscape(msg))
}

func stageMessage(name string, stage domain.Stage, info string) string {
	switch stage {
	case domain.StagePsychotest:
		return fmt.Sprintf(
			"Halo *%s*,\n\nSelamat! Anda lanjut ke tahap *Psikotes*.\nLink Tes: %s\n\nMohon dikerjakan segera. Terima kasih.",
			name, info)
	case domain.StageInterviewHR, domain.StageInterviewUser:
		return fmt.Sprintf(
			"Halo *%s*,\n\nKami mengundang Anda untuk *%s*.\nMohon cek email untuk jadwal detailnya.\n\nCatatan: %s",
			name, stage.Label(), info)
	case domain.StageOffering, domain.StageNegotiation:
		return fmt.Sprintf(
			"Selamat *%s*!\n\nKami mengirimkan *Offering Letter*.\nDownload: %s\n\nMohon konfirmasinya.",
			name, info)
	case domain.StageMCUProcess, domain.StageTicket:
		docType := "Jadwal MCU"
		if stage == domain.StageTicket {
			docType = "Tiket Pesawat"
		}
		return fmt.Sprintf(
			"Halo *%s*,\n\nBerikut dokumen *%s* Anda.\nDownload: %s",
			name, docType, info)
	case domain.StageMCUReview:
		return fmt.Sprintf(
			"Halo *%s*,\n\nTerima kasih telah menjalani Medical Check Up.\nSaat ini hasil MCU Anda sudah kami terima dan sedang dalam proses *Review oleh Tim SCM Clinic*.\n\nMohon kesediaannya menunggu, kami akan segera mengabari hasilnya (Lolos/Tidak) dalam 1x24 jam.",
			name)
	case domain.StageMCUFailed:
		return fmt.Sprintf(
			"Halo *%s*,\n\nTerima kasih telah mengikuti rangkaian seleksi.\nBerdasarkan hasil review tim medis, mohon maaf kami belum bisa melanjutkan ke tahap berikutnya.\n\nTetap semangat dan sukses untuk karir Anda ke depan.",
			name)
	case domain.StageOnboarding:
		return fmt.Sprintf(
			"Selamat *%s*! 🎉\n\nAnda dinyatakan LOLOS MCU dan tahap seleksi akhir.\nSelamat bergabung! Informasi *Onboarding (Hari Pertama)* akan kami kirimkan via email.\n\nSampai jumpa!",
			name)
	case domain.StageHired:
		return fmt.Sprintf("Selamat Bergabung, *%s*! 🎉\nInfo onboarding akan segera dikirim.", name)
	case domain.StageRejected:
		return fmt.Sprintf("Halo *%s*,\nTerima kasih atas waktunya. Saat ini kami belum bisa melanjutkan proses Anda.", name)
	default:
		return fmt.Sprintf("Halo *%s*,\nStatus lamaran update ke: *%s*.", name, stage.Label())
	}
}
