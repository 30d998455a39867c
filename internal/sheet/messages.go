package sheet

const (
	msgLoading       = "Carico…"
	msgRowsPrefix    = "Righe: "
	msgErrorPrefix   = "Errore: "
	msgLinkSent      = "Link inviato ✅ controlla la mail."
	msgNotCreator    = "Non puoi modificare questa riga (non sei il creatore)."
	msgEditSaved     = "Modifica salvata ✅"
	msgSaveErrPrefix = "Errore salvataggio: "
	msgLoginRequired = "Devi essere loggato."
	msgRowSaved      = "Salvato ✅"

	// shown when a session carries no email
	badgeFallback = "utente"
)
