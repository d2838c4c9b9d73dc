// Package prompts holds the localized call-script templates and renders them
// with named parameters.
//
// Each template is addressed by an [ID] and a language tag. Languages without
// a translation for a given template fall back to English, and the caller is
// told which language was actually used so TTS can pick the matching voice.
// Placeholders use {name} syntax; parameters missing from the map render as
// empty strings rather than failing, because a half-rendered prompt spoken to
// the caller beats a dropped call.
package prompts

import (
	"fmt"
	"regexp"

	"github.com/vaanilabs/vaani/internal/langid"
)

// ID names one template of the call script.
type ID string

const (
	Greeting        ID = "greeting"
	EMIPart1        ID = "emi_part1"
	EMIPart2        ID = "emi_part2"
	AgentConnect    ID = "agent_connect"
	GoodbyeDecline  ID = "goodbye_decline"
	TransferNotice  ID = "transfer_notice"
)

// placeholder matches {name} style parameters.
var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// catalog maps template ID and language to the raw template string. English
// is complete by construction; other languages may cover a subset.
var catalog = map[ID]map[langid.Language]string{
	Greeting: {
		langid.English: "Hello {name}, this is a call from your loan provider regarding your loan account. Am I speaking with {name}?",
		langid.Hindi:   "नमस्ते {name} जी, यह आपके लोन प्रदाता की ओर से आपके लोन खाते के बारे में कॉल है। क्या मैं {name} जी से बात कर रही हूँ?",
		langid.Tamil:   "வணக்கம் {name}, உங்கள் கடன் கணக்கு தொடர்பாக உங்கள் கடன் வழங்குநரிடமிருந்து இந்த அழைப்பு. நான் {name} உடன் பேசுகிறேனா?",
		langid.Telugu:  "నమస్తే {name} గారు, ఇది మీ లోన్ ఖాతా గురించి మీ లోన్ ప్రొవైడర్ నుండి కాల్. నేను {name} గారితో మాట్లాడుతున్నానా?",
		langid.Bengali: "নমস্কার {name}, এটি আপনার ঋণ অ্যাকাউন্ট সম্পর্কে আপনার ঋণ প্রদানকারীর পক্ষ থেকে একটি কল। আমি কি {name} এর সাথে কথা বলছি?",
	},
	EMIPart1: {
		langid.English: "Your loan {loan_id} has an outstanding amount of {amount} rupees, due on {due_date}.",
		langid.Hindi:   "आपके लोन {loan_id} पर {amount} रुपये बकाया हैं, जिसकी देय तिथि {due_date} है।",
		langid.Tamil:   "உங்கள் கடன் {loan_id} இல் {amount} ரூபாய் நிலுவையில் உள்ளது, கடைசி தேதி {due_date}.",
		langid.Telugu:  "మీ లోన్ {loan_id} పై {amount} రూపాయలు బకాయి ఉంది, చెల్లింపు తేదీ {due_date}.",
		langid.Bengali: "আপনার ঋণ {loan_id} এ {amount} টাকা বকেয়া আছে, যার শেষ তারিখ {due_date}।",
	},
	EMIPart2: {
		langid.English: "Timely payment helps you avoid late fees and keeps your credit score healthy.",
		langid.Hindi:   "समय पर भुगतान करने से आप लेट फीस से बचते हैं और आपका क्रेडिट स्कोर अच्छा रहता है।",
		langid.Tamil:   "சரியான நேரத்தில் பணம் செலுத்துவது தாமதக் கட்டணத்தைத் தவிர்க்கவும் உங்கள் கடன் மதிப்பெண்ணை நன்றாக வைத்திருக்கவும் உதவும்.",
		langid.Telugu:  "సకాలంలో చెల్లింపు ఆలస్య రుసుములను నివారించి మీ క్రెడిట్ స్కోర్‌ను బాగా ఉంచుతుంది.",
		langid.Bengali: "সময়মতো পেমেন্ট লেট ফি এড়াতে এবং আপনার ক্রেডিট স্কোর ভালো রাখতে সাহায্য করে।",
	},
	AgentConnect: {
		langid.English: "Would you like me to connect you with one of our agents to discuss payment options?",
		langid.Hindi:   "क्या आप भुगतान विकल्पों पर चर्चा करने के लिए हमारे किसी एजेंट से बात करना चाहेंगे?",
		langid.Tamil:   "கட்டண விருப்பங்களைப் பற்றி பேச எங்கள் முகவருடன் உங்களை இணைக்கவா?",
		langid.Telugu:  "చెల్లింపు ఎంపికల గురించి మాట్లాడటానికి మా ఏజెంట్‌తో మిమ్మల్ని కలపాలా?",
		langid.Bengali: "পেমেন্ট বিকল্প নিয়ে আলোচনা করতে আমাদের একজন এজেন্টের সাথে আপনাকে সংযুক্ত করব?",
	},
	GoodbyeDecline: {
		langid.English: "No problem. Please remember to pay before the due date. Thank you, and have a good day.",
		langid.Hindi:   "कोई बात नहीं। कृपया देय तिथि से पहले भुगतान करना याद रखें। धन्यवाद, आपका दिन शुभ हो।",
		langid.Tamil:   "பரவாயில்லை. கடைசி தேதிக்கு முன் பணம் செலுத்த நினைவில் கொள்ளுங்கள். நன்றி, இனிய நாள்.",
		langid.Telugu:  "పర్వాలేదు. చెల్లింపు తేదీకి ముందే చెల్లించడం గుర్తుంచుకోండి. ధన్యవాదాలు, శుభదినం.",
		langid.Bengali: "কোনো সমস্যা নেই। শেষ তারিখের আগে পেমেন্ট করতে মনে রাখবেন। ধন্যবাদ, ভালো থাকবেন।",
	},
	TransferNotice: {
		langid.English: "Please hold while I connect you to an agent.",
		langid.Hindi:   "कृपया प्रतीक्षा करें, मैं आपको एजेंट से जोड़ रही हूँ।",
		langid.Tamil:   "தயவுசெய்து காத்திருங்கள், உங்களை முகவருடன் இணைக்கிறேன்.",
		langid.Telugu:  "దయచేసి వేచి ఉండండి, మిమ్మల్ని ఏజెంట్‌తో కలుపుతున్నాను.",
		langid.Bengali: "অনুগ্রহ করে অপেক্ষা করুন, আমি আপনাকে এজেন্টের সাথে সংযুক্ত করছি।",
	},
}

// Render returns the template id in lang with params interpolated. When lang
// has no translation, the English template is used and the returned language
// is English, so the caller can select a matching TTS voice. Unknown template
// IDs return an error; missing params render as empty strings.
func Render(id ID, lang langid.Language, params map[string]string) (text string, used langid.Language, err error) {
	byLang, ok := catalog[id]
	if !ok {
		return "", "", fmt.Errorf("prompts: unknown template %q", id)
	}

	tmpl, ok := byLang[lang]
	used = lang
	if !ok {
		tmpl = byLang[langid.English]
		used = langid.English
	}

	text = placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		return params[key]
	})
	return text, used, nil
}
