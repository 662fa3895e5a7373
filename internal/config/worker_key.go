package config

type WorkerKeyStruct struct {
	PersistTamperQueue string
	MailQueue          string
}

var WorkerKey = &WorkerKeyStruct{
	PersistTamperQueue: "persist_tamper_queue",
	MailQueue:          "mail_queue",
}
