package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// EditorQueryValue is the ?dev= value that turns on the editing surface.
const EditorQueryValue = "tariffs"

const editorSlot = "<!--editor-->"

// pageHandler serves the pricing page. With ?dev=tariffs the editor panel
// and its script are appended; nothing else enables them.
func (s *Server) pageHandler(c *gin.Context) {
	page := pricingPageHTML
	if c.Query("dev") == EditorQueryValue && s.sessions != nil {
		page = strings.Replace(page, editorSlot, editorPanelHTML, 1)
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, page)
}

const pricingPageHTML = `<!DOCTYPE html>
<html lang="ru">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Тарифы</title>
    <script src="https://cdn.tailwindcss.com"></script>
    <script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.min.js"></script>
    <link rel="preconnect" href="https://fonts.googleapis.com">
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;600;700&display=swap" rel="stylesheet">
    <style>
        body { font-family: 'Inter', sans-serif; background: #0a0a0a; color: #e5e5e5; }
        body.modal-open { overflow: hidden; }
        .accent-color { color: #ffd700; }
        .border-color { border-color: #262626; }
        .cta-button { background: #ffd700; color: #0a0a0a; font-weight: 700; padding: 0.75rem 1.5rem; border-radius: 0.75rem; }
        .secondary-button { border: 1px solid #404040; color: #e5e5e5; padding: 0.75rem 1.5rem; border-radius: 0.75rem; }
        .modal { position: fixed; inset: 0; background: rgba(0,0,0,0.8); display: none; align-items: center; justify-content: center; padding: 1rem; z-index: 50; }
        .modal.active { display: flex; }
        .modal-card { background: #111; border: 1px solid #262626; border-radius: 1rem; display: flex; flex-direction: column; }
        .field-label { display: block; font-size: 0.875rem; color: #a3a3a3; margin-bottom: 0.25rem; }
        .field-input { width: 100%; background: #0b0b0b; border: 1px solid #262626; border-radius: 0.5rem; padding: 0.5rem 0.75rem; color: #e5e5e5; }
        .status-ok { color: #22c55e; }
        .status-error { color: #ef4444; }
    </style>
</head>
<body>
<main id="main-content" class="max-w-5xl mx-auto px-6 py-16 space-y-16">
    <section class="text-center space-y-6">
        <h1 class="text-4xl font-bold text-white">Тарифы</h1>
        <div class="flex flex-wrap justify-center gap-4">
            <button id="full-check-trigger" class="cta-button">Полная проверка</button>
            <button id="single-cam-trigger" class="secondary-button">Одна камера</button>
        </div>
    </section>

    <section id="chart-section" class="hidden">
        <div class="border border-color rounded-xl p-6" style="height: 360px">
            <canvas id="healthScoreChart"></canvas>
        </div>
    </section>
    ` + editorSlot + `
</main>

<div id="pricing-modal" class="modal" aria-hidden="true" role="dialog">
    <div class="bg-[#0a0a0a] border border-color rounded-2xl p-8 max-w-5xl w-full relative">
        <button id="modal-close-btn" class="absolute top-4 right-4 text-gray-400 hover:text-white" aria-label="Закрыть">&times;</button>
        <h2 id="modal-title" class="text-3xl font-bold text-white text-center"></h2>
        <p id="modal-subtitle" class="text-gray-400 text-center mt-2"></p>
        <div id="modal-grid" class="grid grid-cols-1 md:grid-cols-3 gap-6 mt-8"></div>
    </div>
</div>

<script>
document.addEventListener('DOMContentLoaded', () => {
    const getJSON = async (url) => {
        try {
            const res = await fetch(url, { cache: 'no-store' });
            if (!res.ok) throw new Error(url + ': ' + res.status);
            return await res.json();
        } catch (err) {
            console.error(err);
            return null;
        }
    };

    const modal = document.getElementById('pricing-modal');
    const main = document.getElementById('main-content');
    const grid = document.getElementById('modal-grid');

    const planCard = (plan) => {
        const card = document.createElement('div');
        card.className = 'modal-card p-6';
        const name = document.createElement('h3');
        name.className = 'text-2xl font-bold text-center text-white';
        name.textContent = plan.name;
        const list = document.createElement('ul');
        list.className = 'space-y-3 my-6 flex-grow';
        (plan.features || []).forEach(f => {
            const li = document.createElement('li');
            li.className = 'text-gray-400';
            li.textContent = '✓ ' + f;
            list.appendChild(li);
        });
        const price = document.createElement('div');
        price.className = 'text-4xl font-bold text-center accent-color';
        price.textContent = plan.price;
        const per = document.createElement('p');
        per.className = 'text-gray-500 text-center mt-1';
        per.textContent = 'в месяц';
        card.append(name, list, price, per);
        return card;
    };

    const openModal = async (id) => {
        const body = await getJSON('/v1/tariffs/' + encodeURIComponent(id));
        if (!body || !body.tariff) return;
        const t = body.tariff;
        document.getElementById('modal-title').textContent = t.title;
        document.getElementById('modal-subtitle').textContent = t.subtitle;
        grid.replaceChildren(...t.plans.map(planCard));
        main.setAttribute('aria-hidden', 'true');
        modal.setAttribute('aria-hidden', 'false');
        document.body.classList.add('modal-open');
        modal.classList.add('active');
        document.getElementById('modal-close-btn').focus();
    };

    const closeModal = () => {
        modal.setAttribute('aria-hidden', 'true');
        main.setAttribute('aria-hidden', 'false');
        document.body.classList.remove('modal-open');
        modal.classList.remove('active');
    };

    document.getElementById('full-check-trigger').addEventListener('click', () => openModal('full'));
    document.getElementById('single-cam-trigger').addEventListener('click', () => openModal('single'));
    document.getElementById('modal-close-btn').addEventListener('click', closeModal);
    modal.addEventListener('click', (e) => { if (e.target === modal) closeModal(); });
    document.addEventListener('keydown', (e) => {
        if (e.key === 'Escape' && modal.classList.contains('active')) closeModal();
    });

    (async () => {
        const scores = await getJSON('/v1/health-scores');
        if (!scores || !window.Chart) return;
        document.getElementById('chart-section').classList.remove('hidden');
        Chart.defaults.font.family = "'Inter', sans-serif";
        Chart.defaults.color = '#A3A3A3';
        new Chart(document.getElementById('healthScoreChart'), {
            type: 'line',
            data: {
                labels: scores.labels,
                datasets: [{
                    label: scores.datasetLabel,
                    data: scores.values,
                    borderColor: '#ffd700',
                    backgroundColor: 'rgba(255, 215, 0, 0.1)',
                    fill: true, tension: 0.4, borderWidth: 3,
                    pointBackgroundColor: '#ffd700', pointRadius: 5, pointHoverRadius: 7
                }]
            },
            options: {
                responsive: true, maintainAspectRatio: false,
                plugins: {
                    legend: { display: false },
                    tooltip: { callbacks: { label: (c) => (c.dataset.label || '') + ': ' + (c.parsed.y !== null ? c.parsed.y + '%' : '') } }
                },
                scales: {
                    x: { grid: { display: false } },
                    y: { min: 70, max: 100, grid: { color: '#333333' }, ticks: { color: '#ffd700', stepSize: 5, callback: (v) => v + '%' } }
                }
            }
        });
    })();
});
</script>
</body>
</html>
`

const editorPanelHTML = `<section id="dev-tariffs" class="border border-color rounded-2xl p-6 space-y-6">
        <div class="flex items-center justify-between">
            <h2 class="text-2xl font-bold text-white">Редактор тарифов</h2>
            <button id="dev-add-tariff" class="secondary-button">Добавить тариф</button>
        </div>
        <div id="dev-tariffs-list" class="space-y-6"></div>
        <div class="flex flex-wrap gap-3">
            <button id="dev-generate" class="cta-button">Сформировать JSON</button>
            <button id="dev-copy" class="secondary-button">Скопировать</button>
            <button id="dev-download" class="secondary-button">Скачать tariffs.json</button>
        </div>
        <textarea id="dev-json-output" class="w-full h-64 bg-[#0b0b0b] text-gray-200 p-4 rounded-xl border border-color font-mono text-sm" spellcheck="false" readonly></textarea>
        <p id="dev-status" class="text-sm" role="status"></p>
    </section>
<script>
(() => {
    const api = '/v1/editor/sessions';
    const list = document.getElementById('dev-tariffs-list');
    const output = document.getElementById('dev-json-output');
    const status = document.getElementById('dev-status');
    let session = '';

    const setStatus = (text, ok) => {
        status.textContent = text;
        status.className = 'text-sm ' + (ok ? 'status-ok' : 'status-error');
    };

    const call = async (method, path, body) => {
        const res = await fetch(api + path, {
            method,
            cache: 'no-store',
            headers: body ? { 'Content-Type': 'application/json' } : {},
            body: body ? JSON.stringify(body) : undefined
        });
        const data = await res.json().catch(() => ({}));
        if (!res.ok) throw new Error(data.message || res.status);
        return data;
    };

    const field = (label, value, multiline, onChange) => {
        const wrap = document.createElement('label');
        wrap.className = 'block';
        const span = document.createElement('span');
        span.className = 'field-label';
        span.textContent = label;
        const input = document.createElement(multiline ? 'textarea' : 'input');
        input.className = 'field-input' + (multiline ? ' h-28' : '');
        input.value = value;
        input.addEventListener('change', () => onChange(input.value).catch(e => setStatus(e.message, false)));
        wrap.append(span, input);
        return wrap;
    };

    const button = (text, cls, onClick) => {
        const b = document.createElement('button');
        b.className = cls;
        b.textContent = text;
        b.addEventListener('click', () => onClick().catch(e => setStatus(e.message, false)));
        return b;
    };

    const planCard = (tariffKey, plan) => {
        const card = document.createElement('div');
        card.className = 'border border-color rounded-lg p-3 space-y-2';
        const path = '/' + session + '/tariffs/' + tariffKey + '/plans/' + plan.key;
        card.append(
            field('Название плана (например M)', plan.name, false, v => call('PATCH', path, { name: v })),
            field('Цена', plan.price, false, v => call('PATCH', path, { price: v })),
            field('Фичи (по строке)', plan.features.join('\n'), true, v => call('PATCH', path, { features: v })),
            button('Удалить', 'text-gray-400 hover:text-white text-sm', async () => {
                await call('DELETE', path);
                card.remove();
            })
        );
        return card;
    };

    const tariffCard = (t) => {
        const card = document.createElement('div');
        card.className = 'border border-color rounded-xl p-5 space-y-3';
        const path = '/' + session + '/tariffs/' + t.key;
        const plans = document.createElement('div');
        plans.className = 'grid grid-cols-1 md:grid-cols-3 gap-4';
        t.plans.forEach(p => plans.appendChild(planCard(t.key, p)));
        const controls = document.createElement('div');
        controls.className = 'flex items-center gap-4';
        controls.append(
            button('Добавить план', 'secondary-button', async () => {
                const res = await call('POST', path + '/plans');
                plans.appendChild(planCard(t.key, res.plan));
            }),
            button('Удалить тариф', 'text-gray-400 hover:text-white text-sm', async () => {
                await call('DELETE', path);
                card.remove();
            })
        );
        card.append(
            field('Идентификатор (id)', t.id, false, v => call('PATCH', path, { id: v })),
            field('Заголовок', t.title, false, v => call('PATCH', path, { title: v })),
            field('Подзаголовок', t.subtitle, false, v => call('PATCH', path, { subtitle: v })),
            plans,
            controls
        );
        return card;
    };

    const generate = async () => {
        const res = await call('GET', '/' + session + '/output');
        output.value = res.json;
        return res.json;
    };

    document.getElementById('dev-add-tariff').addEventListener('click', () =>
        call('POST', '/' + session + '/tariffs')
            .then(res => list.appendChild(tariffCard(res.tariff)))
            .catch(e => setStatus(e.message, false)));

    document.getElementById('dev-generate').addEventListener('click', () =>
        generate().then(() => setStatus('JSON сформирован.', true)).catch(e => setStatus(e.message, false)));

    document.getElementById('dev-copy').addEventListener('click', async () => {
        try {
            const text = await generate();
            await navigator.clipboard.writeText(text);
            setStatus('JSON скопирован в буфер обмена.', true);
        } catch (e) {
            setStatus('Не удалось скопировать: ' + e.message, false);
        }
    });

    document.getElementById('dev-download').addEventListener('click', () => {
        const a = document.createElement('a');
        a.href = api + '/' + session + '/download';
        a.download = 'tariffs.json';
        document.body.appendChild(a);
        a.click();
        a.remove();
        setStatus('Файл tariffs.json скачан.', true);
    });

    call('POST', '')
        .then(res => {
            session = res.session.id;
            res.tariffs.forEach(t => list.appendChild(tariffCard(t)));
            generate();
        })
        .catch(e => setStatus('Не удалось открыть редактор: ' + e.message, false));
})();
</script>`
